package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the trade direction.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// ActionType tags a StrategyAction.
type ActionType string

const (
	ActionBuy   ActionType = "BUY"
	ActionSell  ActionType = "SELL"
	ActionHold  ActionType = "HOLD"
	ActionPause ActionType = "PAUSE"
)

// TradeSize expresses the size of an intended trade. Exactly one of the two
// amounts is populated: base units for SELL, quote units for BUY.
type TradeSize struct {
	BaseAmount  decimal.Decimal `json:"base_amount,omitempty"`
	QuoteAmount decimal.Decimal `json:"quote_amount,omitempty"`
}

// BaseSize returns a TradeSize denominated in base units.
func BaseSize(amount decimal.Decimal) *TradeSize {
	return &TradeSize{BaseAmount: amount}
}

// QuoteSize returns a TradeSize denominated in quote units.
func QuoteSize(amount decimal.Decimal) *TradeSize {
	return &TradeSize{QuoteAmount: amount}
}

// StrategyAction is the single output of one decision cycle. BUY and SELL
// carry a size; HOLD and PAUSE carry only the reason.
type StrategyAction struct {
	Type   ActionType `json:"type"`
	Reason string     `json:"reason"`
	Size   *TradeSize `json:"size,omitempty"`
}

func HoldAction(reason string) *StrategyAction {
	return &StrategyAction{Type: ActionHold, Reason: reason}
}

func PauseAction(reason string) *StrategyAction {
	return &StrategyAction{Type: ActionPause, Reason: reason}
}

func BuyAction(size *TradeSize, reason string) *StrategyAction {
	return &StrategyAction{Type: ActionBuy, Reason: reason, Size: size}
}

func SellAction(size *TradeSize, reason string) *StrategyAction {
	return &StrategyAction{Type: ActionSell, Reason: reason, Size: size}
}

// Balances is a wallet snapshot from the venue.
type Balances struct {
	Base         decimal.Decimal `json:"base"`
	Quote        decimal.Decimal `json:"quote"`
	NativeForGas decimal.Decimal `json:"native_for_gas"`
}

// Quote is a point-in-time executable price. Quotes expire ~30s after
// issuance; an expired quote must be re-fetched, never executed.
type Quote struct {
	Side           Side            `json:"side"`
	InputAmount    decimal.Decimal `json:"input_amount"`
	OutputAmount   decimal.Decimal `json:"output_amount"`
	Price          decimal.Decimal `json:"price"`
	PriceImpactBps int64           `json:"price_impact_bps"`
	AmountIsBase   bool            `json:"amount_is_base"`
	IssuedAt       time.Time       `json:"issued_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// Expired reports whether the quote is no longer executable at now.
func (q *Quote) Expired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}

// SwapResult is the venue's report of one executed swap.
type SwapResult struct {
	Success           bool            `json:"success"`
	TxID              string          `json:"tx_id,omitempty"`
	ExecutedPrice     decimal.Decimal `json:"executed_price"`
	InputAmount       decimal.Decimal `json:"input_amount"`
	OutputAmount      decimal.Decimal `json:"output_amount"`
	ActualSlippageBps int64           `json:"actual_slippage_bps"`
	Fees              decimal.Decimal `json:"fees"` // quote units
	Err               *TradeError     `json:"error,omitempty"`
}

// Connectivity is the venue health probe result.
type Connectivity struct {
	Connected bool  `json:"connected"`
	LatencyMs int64 `json:"latency_ms"`
}

// ChunkResult records one chunk of a split execution.
type ChunkResult struct {
	Index         int             `json:"index"`
	ClientOrderID string          `json:"client_order_id"`
	InputAmount   decimal.Decimal `json:"input_amount"`
	OutputAmount  decimal.Decimal `json:"output_amount"`
	ExecutedPrice decimal.Decimal `json:"executed_price"`
	SlippageBps   int64           `json:"slippage_bps"`
	Fees          decimal.Decimal `json:"fees"`
}

// SplitExecutionResult aggregates the chunks of one sized trade. Completed is
// false when execution stopped early; already-filled chunks are never
// reversed.
type SplitExecutionResult struct {
	Chunks      []ChunkResult   `json:"chunks"`
	Completed   bool            `json:"completed"`
	AbortReason string          `json:"abort_reason,omitempty"`
	TotalInput  decimal.Decimal `json:"total_input"`
	TotalOutput decimal.Decimal `json:"total_output"`
	AvgPrice    decimal.Decimal `json:"avg_price"` // size-weighted
	TotalFees   decimal.Decimal `json:"total_fees"`
}

// Filled reports whether any chunk executed.
func (r *SplitExecutionResult) Filled() bool {
	return len(r.Chunks) > 0
}

// CapitalTier classifies trade notional against breakpoints.
type CapitalTier string

const (
	TierSmall  CapitalTier = "SMALL"
	TierMedium CapitalTier = "MEDIUM"
	TierLarge  CapitalTier = "LARGE"
)

// ExecutionMode is SINGLE or SPLIT(n).
type ExecutionMode struct {
	Split  bool `json:"split"`
	Chunks int  `json:"chunks"`
}

// SingleExecution executes in one shot.
func SingleExecution() ExecutionMode { return ExecutionMode{Chunks: 1} }

// SplitExecution executes in n sequential chunks.
func SplitExecution(n int) ExecutionMode { return ExecutionMode{Split: true, Chunks: n} }

// TradePlan is an ephemeral capital claim, created and discarded within one
// allocator call. Never persisted.
type TradePlan struct {
	InstanceID string          `json:"instance_id"`
	Side       Side            `json:"side"`
	Notional   decimal.Decimal `json:"notional"` // quote units
	CreatedAt  time.Time       `json:"created_at"`
}

// WalletGuardrailResult is the allocator's verdict on a TradePlan.
type WalletGuardrailResult struct {
	Allowed   bool            `json:"allowed"`
	Reason    string          `json:"reason,omitempty"`
	Committed decimal.Decimal `json:"committed"` // total after this plan, if allowed
	Headroom  decimal.Decimal `json:"headroom"`  // remaining capacity after the verdict
}

// OrderRecord is the order journal entry backing the idempotency contract.
type OrderRecord struct {
	ClientOrderID string          `json:"client_order_id"`
	InstanceID    string          `json:"instance_id"`
	Side          Side            `json:"side"`
	Amount        decimal.Decimal `json:"amount"`
	AmountIsBase  bool            `json:"amount_is_base"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AlertEvent is the structured event handed to the alert sink. Delivery is
// fire-and-forget and never blocks a decision cycle.
type AlertEvent struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// HourlyStats is one hour of rolling price analytics consumed by the regime
// classifier.
type HourlyStats struct {
	Hour        time.Time       `json:"hour"`
	Open        decimal.Decimal `json:"open"`
	Close       decimal.Decimal `json:"close"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	TradeCount  int64           `json:"trade_count"`
	Reversals   int             `json:"reversals"` // direction changes within the hour
}
