package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	perrors "github.com/meow-stack/chainplan/internal/errors"
)

// Client talks to the plan service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	// refreshGroup collapses concurrent refreshes of the same plan into one
	// request; the watcher and the active plan updater often tick together.
	refreshGroup singleflight.Group
}

// NewClient creates a client for the plan service at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With("component", "plan-client"),
	}
}

// GetPlan fetches the current backend view of a plan.
func (c *Client) GetPlan(ctx context.Context, planID string) (*PlanResponse, error) {
	var plan PlanResponse
	if err := c.do(ctx, http.MethodGet, "get", planID, planPath(planID), nil, &plan); err != nil {
		return nil, err
	}
	return checkPlanID("get", planID, &plan)
}

// RefreshPlan asks the backend to re-check on-chain state for a plan and
// returns the refreshed plan. Concurrent calls for one plan share a request;
// the shared request is bounded by the client timeout, not by any one
// caller's ctx, and each caller stops waiting when its own ctx ends.
func (c *Client) RefreshPlan(ctx context.Context, planID string) (*PlanResponse, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := c.refreshGroup.DoChan(planID, func() (any, error) {
		var plan PlanResponse
		if err := c.do(flightCtx, http.MethodPost, "refresh", planID, planPath(planID)+"/refresh", nil, &plan); err != nil {
			return nil, err
		}
		return checkPlanID("refresh", planID, &plan)
	})

	select {
	case <-ctx.Done():
		return nil, perrors.RemoteRequest("refresh", planID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("refresh shared", "plan_id", planID)
		}
		// Callers own their copy; the shared value must not be mutated.
		return res.Val.(*PlanResponse).Clone(), nil
	}
}

// ListPlans returns the ids of every plan the backend tracks.
func (c *Client) ListPlans(ctx context.Context) ([]string, error) {
	var out struct {
		PlanIDs []string `json:"planIds"`
	}
	if err := c.do(ctx, http.MethodGet, "list", "", "/v1/plans", nil, &out); err != nil {
		return nil, err
	}
	return out.PlanIDs, nil
}

// CreatePlan registers a new plan. The backend assigns the plan id.
func (c *Client) CreatePlan(ctx context.Context, plan *PlanResponse) (*PlanResponse, error) {
	var created PlanResponse
	if err := c.do(ctx, http.MethodPost, "create", "", "/v1/plans", plan, &created); err != nil {
		return nil, err
	}
	if created.PlanID == "" {
		return nil, perrors.RemoteDecode("create", "", fmt.Errorf("response has no plan id"))
	}
	return &created, nil
}

// CancelStepRequest asks the backend to relay a cancellation for one step.
type CancelStepRequest struct {
	// Mechanism is "nonce_replacement" or "permit2_invalidation".
	Mechanism string `json:"mechanism"`
	ChainID   int64  `json:"chainId"`
	TxHash    string `json:"txHash,omitempty"`
	OrderID   string `json:"orderId,omitempty"`
}

// CancelStepResponse reports the submitted cancellation transaction.
type CancelStepResponse struct {
	CancelTxHash string `json:"cancelTxHash"`
}

// CancelStep submits a cancellation for the step at stepIndex.
func (c *Client) CancelStep(ctx context.Context, planID string, stepIndex int, req CancelStepRequest) (*CancelStepResponse, error) {
	var out CancelStepResponse
	path := planPath(planID) + "/steps/" + strconv.Itoa(stepIndex) + "/cancel"
	if err := c.do(ctx, http.MethodPost, "cancel", planID, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, op, planID, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return perrors.RemoteRequest(op, planID, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return perrors.RemoteRequest(op, planID, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return perrors.RemoteRequest(op, planID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && planID != "" {
		return perrors.PlanNotFound(planID)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return perrors.RemoteStatus(op, planID, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return perrors.RemoteDecode(op, planID, err)
	}
	return nil
}

func planPath(planID string) string {
	return "/v1/plans/" + url.PathEscape(planID)
}

func checkPlanID(op, planID string, plan *PlanResponse) (*PlanResponse, error) {
	if plan.PlanID == "" {
		plan.PlanID = planID
	}
	if plan.PlanID != planID {
		return nil, perrors.RemoteDecode(op, planID, fmt.Errorf("response is for plan %s", plan.PlanID))
	}
	return plan, nil
}
