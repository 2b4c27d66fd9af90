package types

// StepStatus is the canonical local status of a plan step. Both remote status
// vocabularies are mapped onto this set.
type StepStatus string

const (
	StepStatusUnknown        StepStatus = "unknown"         // Unrecognized remote value
	StepStatusQueued         StepStatus = "queued"          // Not ready to start
	StepStatusAwaitingAction StepStatus = "awaiting_action" // Needs a user action (signature, tx)
	StepStatusPending        StepStatus = "pending"         // Submitted, in progress
	StepStatusSuccess        StepStatus = "success"         // Completed successfully
	StepStatusFailed         StepStatus = "failed"          // Failed or errored
)

// Valid returns true if this is a recognized status.
func (s StepStatus) Valid() bool {
	switch s {
	case StepStatusUnknown, StepStatusQueued, StepStatusAwaitingAction,
		StepStatusPending, StepStatusSuccess, StepStatusFailed:
		return true
	}
	return false
}

// IsTerminal returns true if this status is final (success or failed).
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusSuccess || s == StepStatusFailed
}

// StepType is the backend's classification of a plan step.
type StepType string

const (
	StepTypeClassic          StepType = "CLASSIC"
	StepTypeApprovalTxn      StepType = "APPROVAL_TXN"
	StepTypeResetApprovalTxn StepType = "RESET_APPROVAL_TXN"
	StepTypeApprovalPermit   StepType = "APPROVAL_PERMIT"
	StepTypeDutchLimit       StepType = "DUTCH_LIMIT"
	StepTypeDutchV2          StepType = "DUTCH_V2"
	StepTypeDutchV3          StepType = "DUTCH_V3"
	StepTypePriority         StepType = "PRIORITY"
	StepTypeBridge           StepType = "BRIDGE"
	StepTypeWrap             StepType = "WRAP"
	StepTypeUnwrap           StepType = "UNWRAP"
	StepTypeChained          StepType = "CHAINED"
	StepTypeQuickroute       StepType = "QUICKROUTE"
)

// Routing is the execution strategy for a step, derived from its StepType.
type Routing string

const (
	RoutingClassic    Routing = "classic"
	RoutingPermit     Routing = "permit"
	RoutingDutchLimit Routing = "dutch_limit"
	RoutingDutchV2    Routing = "dutch_v2"
	RoutingDutchV3    Routing = "dutch_v3"
	RoutingPriority   Routing = "priority"
	RoutingBridge     Routing = "bridge"
	RoutingWrap       Routing = "wrap"
	RoutingUnwrap     Routing = "unwrap"
	RoutingChained    Routing = "chained"
	RoutingQuickroute Routing = "quickroute"
)

// IsUniswapX returns true for auctioned-order routings whose proof is an order id.
func (r Routing) IsUniswapX() bool {
	switch r {
	case RoutingDutchLimit, RoutingDutchV2, RoutingDutchV3, RoutingPriority:
		return true
	}
	return false
}

// CancellationType identifies how a submitted step can be cancelled.
type CancellationType string

const (
	// CancellationClassic replaces the transaction at the same nonce.
	CancellationClassic CancellationType = "classic"
	// CancellationUniswapX invalidates the permit2 nonce backing the order.
	CancellationUniswapX CancellationType = "uniswapx"
)

// Cancellation returns the cancellation mechanism for this routing.
// Permit, chained and quickroute routings have none.
func (r Routing) Cancellation() (CancellationType, bool) {
	switch r {
	case RoutingClassic, RoutingBridge, RoutingWrap, RoutingUnwrap:
		return CancellationClassic, true
	case RoutingDutchLimit, RoutingDutchV2, RoutingDutchV3, RoutingPriority:
		return CancellationUniswapX, true
	}
	return "", false
}

// StepProof is the on-chain evidence that a step was submitted.
// Exactly one of ClassicProof or UniswapXProof.
type StepProof interface {
	// Reference returns the tx hash or order id.
	Reference() string
	isStepProof()
}

// ClassicProof is a transaction hash.
type ClassicProof struct {
	TxHash string
}

func (p ClassicProof) Reference() string { return p.TxHash }
func (ClassicProof) isStepProof()        {}

// UniswapXProof is an order id; UniswapX orders have no tx hash of their own
// until a filler executes them.
type UniswapXProof struct {
	OrderID string
}

func (p UniswapXProof) Reference() string { return p.OrderID }
func (UniswapXProof) isStepProof()        {}

// Token identifies an asset on a chain.
type Token struct {
	ChainID int64
	Address string
}

// PlanStep is one unit of work within a plan.
type PlanStep struct {
	PlanID    string
	StepIndex int
	StepType  StepType
	Status    StepStatus
	Routing   Routing

	// Proof is nil until the step has been submitted.
	Proof StepProof

	// Slippage in percentage points; nil for steps without a tolerance
	// (bridges, wraps, approvals).
	Slippage *float64

	TokenIn   Token
	TokenOut  Token
	AmountIn  string
	AmountOut string
}

// Submitted returns true if the step carries a proof.
func (s *PlanStep) Submitted() bool {
	return s.Proof != nil && s.Proof.Reference() != ""
}
