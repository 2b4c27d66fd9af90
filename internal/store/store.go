// Package store holds the active plan, the execution lock and the
// backgrounded and cancelled plan bookkeeping.
//
// The execution lock is advisory. Nothing stops a caller from replacing the
// active plan while the lock is held, so every background mutator must check
// IsExecutionLocked itself and skip, not queue, its update.
package store

import (
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/meow-stack/chainplan/internal/logging"
	"github.com/meow-stack/chainplan/internal/types"
)

// Store is the process-wide plan state container. Plans handed to and
// returned from a Store are shared and must be treated as immutable.
type Store struct {
	mu sync.RWMutex

	activePlan   *types.Plan
	backgrounded map[string]*types.BackgroundedPlan
	cancelled    map[string]struct{}

	// lockPlanID is the plan a foreground driver owns; empty when unlocked.
	lockPlanID string

	now    func() time.Time
	logger *slog.Logger
}

// New creates an empty store.
func New(logger *slog.Logger) *Store {
	return &Store{
		backgrounded: make(map[string]*types.BackgroundedPlan),
		cancelled:    make(map[string]struct{}),
		now:          time.Now,
		logger:       logging.WithComponent(logger, "store"),
	}
}

// SetActivePlan replaces the active plan wholesale. It returns false, and
// leaves the store untouched, when plan is deep-equal to the current one.
func (s *Store) SetActivePlan(plan *types.Plan) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reflect.DeepEqual(s.activePlan, plan) {
		return false
	}
	s.activePlan = plan

	if plan != nil {
		s.logger.Debug("active plan set",
			"plan_id", plan.PlanID,
			"current_step_index", plan.CurrentStepIndex,
		)
	}
	return true
}

// ResetActivePlan clears the active plan. The execution lock is left as is:
// the driver that owns it releases it from its own cleanup.
func (s *Store) ResetActivePlan() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activePlan != nil {
		s.logger.Debug("active plan reset", "plan_id", s.activePlan.PlanID)
	}
	s.activePlan = nil
}

// ClearFinishedPlan empties the active slot when it still holds planID and
// the plan is not locked for execution. The lock itself is left alone.
func (s *Store) ClearFinishedPlan(planID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activePlan == nil || s.activePlan.PlanID != planID || s.lockedLocked() {
		return false
	}
	s.activePlan = nil
	s.logger.Debug("finished plan cleared from active slot", "plan_id", planID)
	return true
}

// LockPlanForExecution hands the execution lock to planID. Last writer wins;
// a previous owner's later unlock becomes a no-op.
func (s *Store) LockPlanForExecution(planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lockPlanID != "" && s.lockPlanID != planID {
		s.logger.Debug("execution lock taken over", "plan_id", planID, "previous_plan_id", s.lockPlanID)
	} else {
		s.logger.Debug("execution lock acquired", "plan_id", planID)
	}
	s.lockPlanID = planID
}

// UnlockPlanForExecution releases the lock only if planID owns it. It
// returns true if the lock was released.
func (s *Store) UnlockPlanForExecution(planID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lockPlanID == "" || s.lockPlanID != planID {
		return false
	}
	s.lockPlanID = ""
	s.logger.Debug("execution lock released", "plan_id", planID)
	return true
}

// IsExecutionLocked returns true if the lock is held for the active plan. A
// lock held for any other plan does not block work on the active one.
func (s *Store) IsExecutionLocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lockedLocked()
}

func (s *Store) lockedLocked() bool {
	return s.lockPlanID != "" && s.activePlan != nil && s.lockPlanID == s.activePlan.PlanID
}

// ActivePlan returns the active plan, or nil.
func (s *Store) ActivePlan() *types.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activePlan
}

// ExecutionLockPlanID returns the lock owner, or "" when unlocked.
func (s *Store) ExecutionLockPlanID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lockPlanID
}

// BackgroundedPlans returns a copy of the backgrounded plan records.
func (s *Store) BackgroundedPlans() map[string]types.BackgroundedPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]types.BackgroundedPlan, len(s.backgrounded))
	for id, bp := range s.backgrounded {
		out[id] = *bp
	}
	return out
}

// CancelledPlanIDs returns the cancelled plan ids in sorted order.
func (s *Store) CancelledPlanIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.cancelled))
	for id := range s.cancelled {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ApplyRefresh replaces the active plan with a refreshed snapshot unless the
// plan is locked for execution or is no longer the active plan. It reports
// whether the store changed.
func (s *Store) ApplyRefresh(plan *types.Plan) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if plan == nil || s.activePlan == nil || s.activePlan.PlanID != plan.PlanID {
		return false
	}
	if s.lockedLocked() {
		return false
	}
	if reflect.DeepEqual(s.activePlan, plan) {
		return false
	}
	s.activePlan = plan
	return true
}
