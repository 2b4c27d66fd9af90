package cancel

import (
	"context"
	"log/slog"

	perrors "github.com/meow-stack/chainplan/internal/errors"
	"github.com/meow-stack/chainplan/internal/logging"
	"github.com/meow-stack/chainplan/internal/remote"
	"github.com/meow-stack/chainplan/internal/types"
)

// Mechanism is how a cancellation is carried out on chain.
type Mechanism string

const (
	// NonceReplacement submits a higher-gas no-op at the same account nonce.
	NonceReplacement Mechanism = "nonce_replacement"
	// Permit2Invalidation invalidates the permit2 nonce backing an order.
	Permit2Invalidation Mechanism = "permit2_invalidation"
)

// MechanismFor returns the mechanism for a cancellation type.
func MechanismFor(t types.CancellationType) Mechanism {
	if t == types.CancellationUniswapX {
		return Permit2Invalidation
	}
	return NonceReplacement
}

// Request is one cancellation handed to a Submitter.
type Request struct {
	PlanID    string
	StepIndex int
	ChainID   int64
	Mechanism Mechanism
	TxHash    string
	OrderID   string
}

// Submitter signs and broadcasts cancellations. It returns the hash of the
// cancellation transaction.
type Submitter interface {
	SubmitCancellation(ctx context.Context, req Request) (string, error)
}

// Result reports a submitted cancellation. Submission does not mean the
// cancellation won; a filler or the original transaction may still land
// first, which shows up later as the step completing normally.
type Result struct {
	Info         *CancelableStepInfo
	Mechanism    Mechanism
	CancelTxHash string
}

// Service cancels the cancelable step of a plan.
type Service struct {
	submitter Submitter
	logger    *slog.Logger
}

// NewService creates a cancellation service.
func NewService(submitter Submitter, logger *slog.Logger) *Service {
	return &Service{
		submitter: submitter,
		logger:    logging.WithComponent(logger, "cancel"),
	}
}

// CancelStep selects the cancelable step of plan and submits a cancellation
// for it. It fails with CANCEL_001 when nothing can be cancelled.
func (s *Service) CancelStep(ctx context.Context, plan *types.Plan) (*Result, error) {
	info := FindCancelableStep(plan)
	if info == nil {
		planID := ""
		if plan != nil {
			planID = plan.PlanID
		}
		return nil, perrors.NothingToCancel(planID)
	}

	req := Request{
		PlanID:    info.PlanID,
		StepIndex: info.StepIndex,
		ChainID:   info.ChainID,
		Mechanism: MechanismFor(info.CancellationType),
		TxHash:    info.TxHash,
		OrderID:   info.OrderID,
	}

	log := logging.WithStep(s.logger, info.PlanID, info.StepIndex)
	log.Info("submitting cancellation",
		"mechanism", req.Mechanism,
		"chain_id", req.ChainID,
	)

	txHash, err := s.submitter.SubmitCancellation(ctx, req)
	if err != nil {
		log.Warn("cancellation submit failed", "error", err)
		return nil, perrors.CancelSubmitFailed(info.PlanID, info.StepIndex, err)
	}

	log.Info("cancellation submitted", "cancel_tx_hash", txHash)
	return &Result{Info: info, Mechanism: req.Mechanism, CancelTxHash: txHash}, nil
}

// RemoteSubmitter relays cancellations through the plan service.
type RemoteSubmitter struct {
	Client *remote.Client
}

// SubmitCancellation implements Submitter.
func (r RemoteSubmitter) SubmitCancellation(ctx context.Context, req Request) (string, error) {
	resp, err := r.Client.CancelStep(ctx, req.PlanID, req.StepIndex, remote.CancelStepRequest{
		Mechanism: string(req.Mechanism),
		ChainID:   req.ChainID,
		TxHash:    req.TxHash,
		OrderID:   req.OrderID,
	})
	if err != nil {
		return "", err
	}
	return resp.CancelTxHash, nil
}
