package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyState is the durable per-instance state. It is owned exclusively by
// one bot instance and mutated only by the orchestrator between cycles.
type StrategyState struct {
	InstanceID string `json:"instance_id"`
	Version    int    `json:"version"`

	// Last trade references used for dip/rise thresholds.
	LastBuyPrice  decimal.Decimal `json:"last_buy_price"`
	LastSellPrice decimal.Decimal `json:"last_sell_price"`
	LastTradeAt   time.Time       `json:"last_trade_at"`

	ConsecutiveFailures int `json:"consecutive_failures"`

	// Hourly/daily counters. Each resets exactly once when the current time
	// crosses into a new hour/day relative to its stored reset timestamp.
	TradesThisHour int       `json:"trades_this_hour"`
	HourResetAt    time.Time `json:"hour_reset_at"`
	TradesToday    int       `json:"trades_today"`
	DayResetAt     time.Time `json:"day_reset_at"`

	// PnL and cost-basis accumulators, quote units.
	RealizedPnL      decimal.Decimal `json:"realized_pnl"`
	DailyRealizedPnL decimal.Decimal `json:"daily_realized_pnl"`
	CostBasisTotal   decimal.Decimal `json:"cost_basis_total"` // quote spent on the open position
	PositionSize     decimal.Decimal `json:"position_size"`    // base units held

	// Circuit breaker. Terminal until externally reset.
	Paused      bool   `json:"paused"`
	PauseReason string `json:"pause_reason,omitempty"`

	Position *PositionState `json:"position,omitempty"`
	Reserve  ReserveState   `json:"reserve"`

	TradeCount     int             `json:"trade_count"`
	WinCount       int             `json:"win_count"`
	PeakEquity     decimal.Decimal `json:"peak_equity"`
	MaxDrawdownPct decimal.Decimal `json:"max_drawdown_pct"`

	LastUpdateTime time.Time `json:"last_update_time"`
}

// NewStrategyState returns a fresh state for an instance, with the reserve
// buckets funded from the configured allocation.
func NewStrategyState(cfg *StrategyConfig, now time.Time) *StrategyState {
	return &StrategyState{
		InstanceID:  cfg.InstanceID,
		Version:     1,
		HourResetAt: now.Truncate(time.Hour),
		DayResetAt:  now.Truncate(24 * time.Hour),
		Reserve:     NewReserveState(cfg),
		PeakEquity:  cfg.AllocatedCapital,
	}
}

// PositionStatus enumerates the scale-out state machine.
type PositionStatus string

const (
	PositionNone           PositionStatus = "NO_POSITION"
	PositionOpen           PositionStatus = "OPEN"
	PositionScaleOutActive PositionStatus = "SCALE_OUT_ACTIVE"
	PositionExtended       PositionStatus = "EXTENDED"
	PositionClosed         PositionStatus = "CLOSED"
)

// ExtensionState tracks whether the ladder has been extended past its
// configured levels.
type ExtensionState string

const (
	ExtensionNone     ExtensionState = "NONE"
	ExtensionExtended ExtensionState = "EXTENDED"
	ExtensionExited   ExtensionState = "EXITED"
)

// ScaleOutLevel is one rung of the exit ladder. Triggered levels never fire
// again; the cumulative ExitPct across a ladder never exceeds 100.
type ScaleOutLevel struct {
	Index        int             `json:"index"`
	TriggerPrice decimal.Decimal `json:"trigger_price"`
	ExitPct      decimal.Decimal `json:"exit_pct"`
	Triggered    bool            `json:"triggered"`
}

// PositionState is the per-position ladder state.
type PositionState struct {
	Status        PositionStatus  `json:"status"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	InitialSize   decimal.Decimal `json:"initial_size"`   // base units bought
	RemainingSize decimal.Decimal `json:"remaining_size"` // base units still held
	Levels        []ScaleOutLevel `json:"levels,omitempty"`
	Extension     ExtensionState  `json:"extension"`
	OpenedAt      time.Time       `json:"opened_at"`
}

// TriggeredExitPct sums the exit percentages of levels already fired.
func (p *PositionState) TriggeredExitPct() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Levels {
		if l.Triggered {
			total = total.Add(l.ExitPct)
		}
	}
	return total
}

// AllLevelsTriggered reports whether every rung has fired.
func (p *PositionState) AllLevelsTriggered() bool {
	for _, l := range p.Levels {
		if !l.Triggered {
			return false
		}
	}
	return len(p.Levels) > 0
}

// ReserveBucket names the three capital buckets.
type ReserveBucket string

const (
	BucketNormal ReserveBucket = "normal"
	BucketRescue ReserveBucket = "rescue"
	BucketChase  ReserveBucket = "chase"
)

// BucketState holds one bucket's quote-currency balance and its regime gate.
type BucketState struct {
	Balance decimal.Decimal `json:"balance"`
	Gated   bool            `json:"gated"`
}

// ReserveState is the 3-bucket capital reserve. Invariant: the sum of the
// three balances equals the instance's allocated capital.
type ReserveState struct {
	Normal BucketState   `json:"normal"`
	Rescue BucketState   `json:"rescue"`
	Chase  BucketState   `json:"chase"`
	Active ReserveBucket `json:"active"`
}

// NewReserveState funds the buckets from the configured allocation. Rescue
// and chase start gated; normal is the active bucket.
func NewReserveState(cfg *StrategyConfig) ReserveState {
	hundred := decimal.NewFromInt(100)
	rescue := cfg.AllocatedCapital.Mul(cfg.RescueReservePct).Div(hundred)
	chase := cfg.AllocatedCapital.Mul(cfg.ChaseReservePct).Div(hundred)
	normal := cfg.AllocatedCapital.Sub(rescue).Sub(chase)
	return ReserveState{
		Normal: BucketState{Balance: normal},
		Rescue: BucketState{Balance: rescue, Gated: true},
		Chase:  BucketState{Balance: chase, Gated: true},
		Active: BucketNormal,
	}
}

// Total returns the sum of all bucket balances.
func (r ReserveState) Total() decimal.Decimal {
	return r.Normal.Balance.Add(r.Rescue.Balance).Add(r.Chase.Balance)
}
