package store

import (
	"sort"

	"github.com/meow-stack/chainplan/internal/types"
)

// BackgroundPlan marks a plan as still executing but no longer foreground.
// Backgrounding an already backgrounded plan refreshes its snapshot and keeps
// the original timestamp. Cancelled plans are not backgrounded.
func (s *Store) BackgroundPlan(planID string, lastKnown *types.Plan) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cancelled[planID]; ok {
		return false
	}
	if bp, ok := s.backgrounded[planID]; ok {
		bp.LastKnown = lastKnown
		return true
	}
	s.backgrounded[planID] = &types.BackgroundedPlan{
		PlanID:         planID,
		BackgroundedAt: s.now(),
		LastKnown:      lastKnown,
	}
	s.logger.Debug("plan backgrounded", "plan_id", planID)
	return true
}

// UpdateBackgroundedPlan records a newer snapshot for a backgrounded plan. It
// returns false if the plan is not backgrounded.
func (s *Store) UpdateBackgroundedPlan(plan *types.Plan) bool {
	if plan == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bp, ok := s.backgrounded[plan.PlanID]
	if !ok {
		return false
	}
	bp.LastKnown = plan
	return true
}

// RemoveBackgroundedPlan forgets a backgrounded plan.
func (s *Store) RemoveBackgroundedPlan(planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.backgrounded[planID]; ok {
		delete(s.backgrounded, planID)
		s.logger.Debug("backgrounded plan removed", "plan_id", planID)
	}
}

// CancelPlan records that the user cancelled a plan. The plan stops being
// polled and is dropped from the backgrounded set.
func (s *Store) CancelPlan(planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelled[planID] = struct{}{}
	delete(s.backgrounded, planID)
	s.logger.Info("plan cancelled", "plan_id", planID)
}

// IsCancelled returns true if the user cancelled planID.
func (s *Store) IsCancelled(planID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.cancelled[planID]
	return ok
}

// KnownPlan returns the freshest local snapshot of a plan: the active plan
// when ids match, else the backgrounded snapshot, else nil.
func (s *Store) KnownPlan(planID string) *types.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activePlan != nil && s.activePlan.PlanID == planID {
		return s.activePlan
	}
	if bp, ok := s.backgrounded[planID]; ok {
		return bp.LastKnown
	}
	return nil
}

// ShouldPollPlan returns true while plan has a non-terminal current step and
// has not been cancelled.
func (s *Store) ShouldPollPlan(plan *types.Plan) bool {
	if plan == nil {
		return false
	}
	step, ok := plan.CurrentStep()
	if !ok || step.Status.IsTerminal() {
		return false
	}
	return !s.IsCancelled(plan.PlanID)
}

// TrackedPlanIDs returns the active plan id followed by the backgrounded ids
// in sorted order.
func (s *Store) TrackedPlanIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	if s.activePlan != nil {
		ids = append(ids, s.activePlan.PlanID)
	}
	bg := make([]string, 0, len(s.backgrounded))
	for id := range s.backgrounded {
		if s.activePlan != nil && id == s.activePlan.PlanID {
			continue
		}
		bg = append(bg, id)
	}
	sort.Strings(bg)
	return append(ids, bg...)
}
