// Package watcher reconciles tracked plans against the backend in the
// background and hands the next known status of a plan to whoever waits on it.
//
// The watcher only reads local snapshots through a Selector and never mutates
// the store; results flow back through PlanFuture values.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/meow-stack/chainplan/internal/config"
	perrors "github.com/meow-stack/chainplan/internal/errors"
	"github.com/meow-stack/chainplan/internal/flags"
	"github.com/meow-stack/chainplan/internal/logging"
	"github.com/meow-stack/chainplan/internal/types"
)

// Selector returns the local snapshot of a plan, or nil if it is unknown.
type Selector func(planID string) *types.Plan

// ShouldPoll reports whether polling a plan can still produce a new status.
type ShouldPoll func(plan *types.Plan) bool

// PollResult is the outcome of polling one plan.
type PollResult struct {
	// Updated is set when the backend reports a status different from the
	// local snapshot.
	Updated *types.Plan
	// StopTracking is set when the backend has given up on the plan.
	StopTracking bool
}

// Poller fetches the backend view of one plan.
type Poller interface {
	Poll(ctx context.Context, known *types.Plan) (PollResult, error)
}

// Resolution says why a listener was resolved.
type Resolution string

const (
	ResolvedUpdated    Resolution = "updated"
	ResolvedNotPolling Resolution = "not_pollable"
	ResolvedStopped    Resolution = "stop_tracking"
	ResolvedUnknown    Resolution = "unknown_plan"
	ResolvedTimeout    Resolution = "timeout"
	ResolvedDrift      Resolution = "taxonomy_drift"
)

// Watcher is the background plan poller.
type Watcher struct {
	cfg        config.WatcherConfig
	selector   Selector
	shouldPoll ShouldPoll
	poller     Poller
	flags      flags.Provider
	logger     *slog.Logger

	mu        sync.Mutex
	listeners map[string]*PlanFuture
	cancel    context.CancelFunc
	loopDone  chan struct{}
}

// New creates a watcher. It does nothing until Initialize is called.
func New(cfg config.WatcherConfig, selector Selector, shouldPoll ShouldPoll, poller Poller, flagProvider flags.Provider, logger *slog.Logger) *Watcher {
	return &Watcher{
		cfg:        cfg,
		selector:   selector,
		shouldPoll: shouldPoll,
		poller:     poller,
		flags:      flagProvider,
		logger:     logging.WithComponent(logger, "plan-watcher"),
		listeners:  make(map[string]*PlanFuture),
	}
}

// Initialize starts the poll loop and returns immediately. Calling it again
// cancels the previous loop, so at most one loop serves the listener
// registry. Listeners survive re-initialization.
func (w *Watcher) Initialize(ctx context.Context) {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.logger.Debug("superseding previous poll loop")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.loopDone = done
	w.mu.Unlock()

	go func() {
		defer close(done)
		w.run(loopCtx)
	}()
}

// Stop cancels the poll loop and waits for it to exit. Pending listeners are
// left to their timeouts.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.loopDone
	w.cancel, w.loopDone = nil, nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// WaitForPlanStatus returns a future for the next known status of planID.
// Concurrent calls for one plan share a single future. The future always
// resolves within the configured plan max age.
func (w *Watcher) WaitForPlanStatus(planID string) *PlanFuture {
	w.mu.Lock()
	defer w.mu.Unlock()

	if f, ok := w.listeners[planID]; ok {
		return f
	}

	f := newPlanFuture(planID)
	f.timer = time.AfterFunc(w.cfg.PlanMaxAge, func() {
		w.resolve(f, nil, ResolvedTimeout)
	})
	w.listeners[planID] = f
	w.logger.Debug("listener registered", "plan_id", planID, "max_age", w.cfg.PlanMaxAge)
	return f
}

// ListenerCount returns the number of plans currently waited on.
func (w *Watcher) ListenerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.listeners)
}

// resolve completes f and drops it from the registry. Every resolution path,
// the timeout included, goes through here.
func (w *Watcher) resolve(f *PlanFuture, plan *types.Plan, why Resolution) {
	w.mu.Lock()
	if cur, ok := w.listeners[f.planID]; ok && cur == f {
		delete(w.listeners, f.planID)
	}
	if f.timer != nil {
		f.timer.Stop()
	}
	w.mu.Unlock()

	if f.complete(plan) {
		w.logger.Debug("listener resolved", "plan_id", f.planID, "reason", why)
	}
}

func (w *Watcher) run(ctx context.Context) {
	if err := w.flags.Ready(ctx); err != nil || ctx.Err() != nil {
		return
	}
	if !w.flags.IsEnabled(flags.ChainedActions) {
		w.logger.Info("plan watcher disabled by flag", "flag", flags.ChainedActions)
		return
	}

	w.logger.Info("plan watcher starting", "poll_interval", w.cfg.PollInterval)
	if !sleep(ctx, w.cfg.InitialDelay) {
		return
	}

	for {
		w.tick(ctx)
		if !sleep(ctx, w.cfg.PollInterval) {
			w.logger.Debug("plan watcher stopped", "reason", ctx.Err())
			return
		}
	}
}

// tick polls every plan that has a listener.
func (w *Watcher) tick(ctx context.Context) {
	w.mu.Lock()
	pending := make([]*PlanFuture, 0, len(w.listeners))
	for _, f := range w.listeners {
		pending = append(pending, f)
	}
	w.mu.Unlock()

	sort.Slice(pending, func(i, j int) bool { return pending[i].planID < pending[j].planID })

	for _, f := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := w.pollListener(ctx, f); err != nil {
			w.logger.Warn("plan poll failed",
				"plan_id", f.planID,
				"function", "pollListener",
				"error", err,
			)
		}
	}
}

func (w *Watcher) pollListener(ctx context.Context, f *PlanFuture) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while polling: %v", r)
		}
	}()

	known := w.selector(f.planID)
	if known == nil {
		w.resolve(f, nil, ResolvedUnknown)
		return nil
	}
	if !w.shouldPoll(known) {
		w.resolve(f, known, ResolvedNotPolling)
		return nil
	}

	res, err := w.poller.Poll(ctx, known)
	if perrors.HasCode(err, perrors.CodePlanTaxonomyDrift) {
		// Retrying cannot map the step type; hand back the last good snapshot.
		w.logger.Error("plan has unmapped step type",
			"plan_id", f.planID, "function", "pollListener", "error", err)
		w.resolve(f, known, ResolvedDrift)
		return nil
	}
	if err != nil {
		return err
	}
	switch {
	case res.StopTracking:
		w.resolve(f, known, ResolvedStopped)
	case res.Updated != nil:
		w.resolve(f, res.Updated, ResolvedUpdated)
	}
	return nil
}

// sleep waits for d or until ctx is done. It returns false if ctx ended.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
