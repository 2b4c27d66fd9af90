package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/types"
)

// Backend is an in-memory plan service.
type Backend struct {
	mu        sync.Mutex
	plans     map[string]*remote.PlanResponse
	failSteps map[string]bool
	logger    *slog.Logger
}

// NewBackend creates a backend seeded with the configured plans.
func NewBackend(config SimConfig, logger *slog.Logger) *Backend {
	b := &Backend{
		plans:     make(map[string]*remote.PlanResponse),
		failSteps: make(map[string]bool),
		logger:    logger,
	}
	for _, p := range config.Plans {
		if p.Status == "" {
			p.Status = remote.PlanStatusActive
		}
		b.plans[p.PlanID] = p.Clone()
	}
	for _, key := range config.FailSteps {
		b.failSteps[key] = true
	}
	return b
}

// Router returns the HTTP routes of the plan service.
func (b *Backend) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/v1/plans", func(r chi.Router) {
		r.Get("/", b.listPlans)
		r.Post("/", b.createPlan)
		r.Get("/{plan_id}", b.getPlan)
		r.Post("/{plan_id}/refresh", b.refreshPlan)
		r.Post("/{plan_id}/steps/{step_index}/cancel", b.cancelStep)
	})
	return r
}

func (b *Backend) listPlans(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	ids := make([]string, 0, len(b.plans))
	for id := range b.plans {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	sort.Strings(ids)
	writeJSON(w, http.StatusOK, map[string][]string{"planIds": ids})
}

func (b *Backend) createPlan(w http.ResponseWriter, r *http.Request) {
	var plan remote.PlanResponse
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid plan: "+err.Error())
		return
	}
	if len(plan.Steps) == 0 {
		writeErr(w, http.StatusBadRequest, "plan has no steps")
		return
	}

	plan.PlanID = uuid.NewString()
	plan.Status = remote.PlanStatusActive
	plan.CurrentStepIndex = 0
	for i := range plan.Steps {
		plan.Steps[i].Status = remote.QueryStepQueued
		plan.Steps[i].SessionStatus = ""
		plan.Steps[i].Hash = ""
	}

	b.mu.Lock()
	b.plans[plan.PlanID] = plan.Clone()
	b.mu.Unlock()

	b.logger.Info("plan created", "plan_id", plan.PlanID, "steps", len(plan.Steps))
	writeJSON(w, http.StatusCreated, &plan)
}

func (b *Backend) getPlan(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	plan, ok := b.plans[chi.URLParam(r, "plan_id")]
	var out *remote.PlanResponse
	if ok {
		out = plan.Clone()
	}
	b.mu.Unlock()

	if !ok {
		writeErr(w, http.StatusNotFound, "plan not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) refreshPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "plan_id")

	b.mu.Lock()
	plan, ok := b.plans[planID]
	var out *remote.PlanResponse
	if ok {
		b.advance(plan)
		out = plan.Clone()
	}
	b.mu.Unlock()

	if !ok {
		writeErr(w, http.StatusNotFound, "plan not found")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// advance moves the current step one status forward:
// queued -> action_required -> in_progress -> succeeded.
func (b *Backend) advance(plan *remote.PlanResponse) {
	if plan.Status != remote.PlanStatusActive {
		return
	}
	if plan.CurrentStepIndex >= len(plan.Steps) {
		plan.Status = remote.PlanStatusCompleted
		return
	}

	idx := plan.CurrentStepIndex
	step := &plan.Steps[idx]
	step.SessionStatus = ""

	switch step.Status {
	case remote.QueryStepQueued, "":
		step.Status = remote.QueryStepActionRequired
	case remote.QueryStepActionRequired:
		step.Status = remote.QueryStepInProgress
		if step.Hash == "" {
			step.Hash = "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
		}
	case remote.QueryStepInProgress:
		if b.failSteps[stepKey(plan.PlanID, idx)] {
			step.Status = remote.QueryStepFailed
			plan.Status = remote.PlanStatusFailed
			break
		}
		step.Status = remote.QueryStepSucceeded
		plan.CurrentStepIndex++
		if plan.CurrentStepIndex == len(plan.Steps) {
			plan.Status = remote.PlanStatusCompleted
		}
	}

	b.logger.Debug("plan advanced",
		"plan_id", plan.PlanID,
		"step_index", idx,
		"status", step.Status,
		"current_step_index", plan.CurrentStepIndex,
	)
}

func (b *Backend) cancelStep(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "plan_id")
	idx, err := strconv.Atoi(chi.URLParam(r, "step_index"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid step index")
		return
	}

	var req remote.CancelStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid cancel request: "+err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	plan, ok := b.plans[planID]
	if !ok {
		writeErr(w, http.StatusNotFound, "plan not found")
		return
	}
	if idx < 0 || idx >= len(plan.Steps) {
		writeErr(w, http.StatusBadRequest, "step index out of range")
		return
	}
	step := &plan.Steps[idx]
	if step.Status != remote.QueryStepInProgress || step.Hash == "" {
		writeErr(w, http.StatusConflict, fmt.Sprintf("step %d is not cancelable", idx))
		return
	}
	if want := expectedMechanism(step.StepType); req.Mechanism != want {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("step %d needs mechanism %q", idx, want))
		return
	}

	step.Status = remote.QueryStepFailed
	plan.Status = remote.PlanStatusCancelled

	cancelTx := "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
	b.logger.Info("step cancelled", "plan_id", planID, "step_index", idx, "mechanism", req.Mechanism)
	writeJSON(w, http.StatusOK, remote.CancelStepResponse{CancelTxHash: cancelTx})
}

// expectedMechanism mirrors the client's routing table for cancellable steps.
func expectedMechanism(stepType string) string {
	switch types.StepType(stepType) {
	case types.StepTypeDutchLimit, types.StepTypeDutchV2, types.StepTypeDutchV3, types.StepTypePriority:
		return "permit2_invalidation"
	default:
		return "nonce_replacement"
	}
}

func stepKey(planID string, idx int) string {
	return planID + "/" + strconv.Itoa(idx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
