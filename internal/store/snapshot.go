package store

import (
	"sort"
	"time"

	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/transform"
	"github.com/meow-stack/chainplan/internal/types"
)

// Snapshot is the persistable part of a Store. Plans are kept as raw backend
// responses and re-transformed on restore. The execution lock is never
// persisted: a lock cannot outlive the process that held it.
type Snapshot struct {
	ActivePlan   *remote.PlanResponse `yaml:"active_plan,omitempty" json:"activePlan,omitempty"`
	Backgrounded []BackgroundedRecord `yaml:"backgrounded,omitempty" json:"backgrounded,omitempty"`
	Cancelled    []string             `yaml:"cancelled,omitempty" json:"cancelled,omitempty"`
	SavedAt      time.Time            `yaml:"saved_at" json:"savedAt"`
}

// BackgroundedRecord is the persisted form of a backgrounded plan.
type BackgroundedRecord struct {
	PlanID         string               `yaml:"plan_id" json:"planId"`
	BackgroundedAt time.Time            `yaml:"backgrounded_at" json:"backgroundedAt"`
	LastKnown      *remote.PlanResponse `yaml:"last_known,omitempty" json:"lastKnown,omitempty"`
}

// Snapshot captures the store for persistence.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{SavedAt: s.now()}
	if s.activePlan != nil {
		snap.ActivePlan = s.activePlan.Response.Clone()
	}
	for id, bp := range s.backgrounded {
		rec := BackgroundedRecord{PlanID: id, BackgroundedAt: bp.BackgroundedAt}
		if bp.LastKnown != nil {
			rec.LastKnown = bp.LastKnown.Response.Clone()
		}
		snap.Backgrounded = append(snap.Backgrounded, rec)
	}
	sort.Slice(snap.Backgrounded, func(i, j int) bool {
		return snap.Backgrounded[i].PlanID < snap.Backgrounded[j].PlanID
	})
	for id := range s.cancelled {
		snap.Cancelled = append(snap.Cancelled, id)
	}
	sort.Strings(snap.Cancelled)
	return snap
}

// Restore replaces the store contents with snap. Plans that no longer
// transform cleanly are dropped and logged rather than failing the restore.
// The execution lock is left untouched.
func (s *Store) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}

	active := s.restorePlan(snap.ActivePlan)
	backgrounded := make(map[string]*types.BackgroundedPlan, len(snap.Backgrounded))
	for _, rec := range snap.Backgrounded {
		backgrounded[rec.PlanID] = &types.BackgroundedPlan{
			PlanID:         rec.PlanID,
			BackgroundedAt: rec.BackgroundedAt,
			LastKnown:      s.restorePlan(rec.LastKnown),
		}
	}
	cancelled := make(map[string]struct{}, len(snap.Cancelled))
	for _, id := range snap.Cancelled {
		cancelled[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.activePlan = active
	s.backgrounded = backgrounded
	s.cancelled = cancelled
}

func (s *Store) restorePlan(resp *remote.PlanResponse) *types.Plan {
	if resp == nil {
		return nil
	}
	plan, err := transform.ToPlan(resp)
	if err != nil {
		s.logger.Warn("dropping unrestorable plan", "plan_id", resp.PlanID, "error", err)
		return nil
	}
	return plan
}
