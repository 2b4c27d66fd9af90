// Package updater keeps the active plan fresh and resumes interrupted plans.
//
// Every write it makes is skipped while the active plan is locked for
// execution; a skipped refresh is not retried, the next tick re-evaluates.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/meow-stack/chainplan/internal/config"
	perrors "github.com/meow-stack/chainplan/internal/errors"
	"github.com/meow-stack/chainplan/internal/logging"
	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/store"
	"github.com/meow-stack/chainplan/internal/transform"
	"github.com/meow-stack/chainplan/internal/types"
)

// Refresher is the remote call the updater depends on.
type Refresher interface {
	RefreshPlan(ctx context.Context, planID string) (*remote.PlanResponse, error)
}

// Outcome describes what one refresh did.
type Outcome string

const (
	OutcomeNoActivePlan Outcome = "no_active_plan"
	OutcomeLocked       Outcome = "locked"
	OutcomeUnchanged    Outcome = "unchanged"
	OutcomeUpdated      Outcome = "updated"
	OutcomeSuperseded   Outcome = "superseded"
)

// Updater periodically refreshes the active plan.
type Updater struct {
	cfg      config.UpdaterConfig
	store    *store.Store
	client   Refresher
	reporter *CompletionReporter
	logger   *slog.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	cancel   context.CancelFunc
	onUpdate func(*types.Plan)
}

// New creates an updater. Call Start to schedule it.
func New(cfg config.UpdaterConfig, st *store.Store, client Refresher, logger *slog.Logger) *Updater {
	logger = logging.WithComponent(logger, "active-plan-updater")
	return &Updater{
		cfg:      cfg,
		store:    st,
		client:   client,
		reporter: NewCompletionReporter(logger),
		logger:   logger,
	}
}

// Start schedules a refresh every configured interval. Overlapping ticks are
// skipped rather than queued.
func (u *Updater) Start(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.cron != nil {
		return fmt.Errorf("updater already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	cl := cronLogger{u.logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	spec := "@every " + u.cfg.Interval.Round(time.Second).String()
	if _, err := c.AddFunc(spec, func() { u.tick(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("scheduling refresh: %w", err)
	}

	c.Start()
	u.cron, u.cancel = c, cancel
	u.logger.Info("active plan updater started", "interval", u.cfg.Interval)
	return nil
}

// OnUpdate registers fn to receive every plan a refresh applies, including
// a finished plan that was just cleared from the active slot.
func (u *Updater) OnUpdate(fn func(*types.Plan)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onUpdate = fn
}

// tick runs one scheduled refresh. An unmapped step type will not go away on
// retry, so it is reported as an error rather than a transient failure.
func (u *Updater) tick(ctx context.Context) {
	_, err := u.Refresh(ctx)
	switch {
	case err == nil:
	case perrors.HasCode(err, perrors.CodePlanTaxonomyDrift):
		u.logger.Error("active plan has unmapped step type", "function", "Refresh", "error", err)
	default:
		u.logger.Warn("active plan refresh failed", "function", "Refresh", "error", err)
	}
}

// Stop unschedules the updater and waits for a running refresh to finish.
func (u *Updater) Stop() {
	u.mu.Lock()
	c, cancel := u.cron, u.cancel
	u.cron, u.cancel = nil, nil
	u.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
}

// Refresh fetches the active plan once and applies the result unless the
// plan got locked or replaced while the request was in flight.
func (u *Updater) Refresh(ctx context.Context) (Outcome, error) {
	active := u.store.ActivePlan()
	if active == nil {
		return OutcomeNoActivePlan, nil
	}
	log := logging.WithPlan(u.logger, active.PlanID)

	if u.store.IsExecutionLocked() {
		log.Debug("active plan locked, skipping refresh")
		return OutcomeLocked, nil
	}

	resp, err := u.client.RefreshPlan(ctx, active.PlanID)
	if err != nil {
		return "", err
	}
	plan, err := transform.ToPlan(resp)
	if err != nil {
		return "", err
	}

	if !u.store.ApplyRefresh(plan) {
		switch cur := u.store.ActivePlan(); {
		case cur == nil || cur.PlanID != plan.PlanID:
			log.Debug("active plan replaced during refresh, discarding")
			return OutcomeSuperseded, nil
		case u.store.IsExecutionLocked():
			log.Debug("active plan locked during refresh, discarding")
			return OutcomeLocked, nil
		default:
			return OutcomeUnchanged, nil
		}
	}

	u.reporter.Observe(active, plan)
	if plan.IsComplete() || plan.HasFailed() {
		u.store.ClearFinishedPlan(plan.PlanID)
		u.store.RemoveBackgroundedPlan(plan.PlanID)
	}
	log.Debug("active plan refreshed", "current_step_index", plan.CurrentStepIndex)

	u.mu.Lock()
	fn := u.onUpdate
	u.mu.Unlock()
	if fn != nil {
		fn(plan)
	}
	return OutcomeUpdated, nil
}

// Resume makes planID the active plan from a fresh backend view. A plan that
// already finished is returned without taking the active slot. Nothing is
// written while the active plan is locked for execution.
func (u *Updater) Resume(ctx context.Context, planID string) (*types.Plan, error) {
	resp, err := u.client.RefreshPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	plan, err := transform.ToPlan(resp)
	if err != nil {
		return nil, err
	}

	log := logging.WithPlan(u.logger, planID)
	if u.store.IsExecutionLocked() {
		log.Info("active plan locked for execution, not resuming",
			"lock_plan_id", u.store.ExecutionLockPlanID())
		return nil, fmt.Errorf("plan %s is locked for execution", u.store.ExecutionLockPlanID())
	}

	if plan.IsComplete() || plan.HasFailed() {
		u.store.RemoveBackgroundedPlan(planID)
		log.Info("plan already finished, not resuming", "complete", plan.IsComplete())
		return plan, nil
	}

	u.store.SetActivePlan(plan)
	u.store.RemoveBackgroundedPlan(planID)
	log.Info("plan resumed", "current_step_index", plan.CurrentStepIndex, "complete", plan.IsComplete())
	return plan, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
