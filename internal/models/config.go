package models

import (
	"github.com/shopspring/decimal"
)

// Mode constants. Stored as plain strings in JSON config but validated on load.
const (
	CompoundingFixed      = "FIXED"
	CompoundingCalculated = "CALCULATED"

	ExitModeFull     = "FULL_EXIT"
	ExitModeScaleOut = "SCALE_OUT"

	CycleModeStandard     = "STANDARD"
	CycleModeRollingRebuy = "ROLLING_REBUY"

	RebuyGateNone     = "NONE"
	RebuyGateChopOnly = "CHOP_ONLY"
)

// AppConfig is the root of the JSON config file: one wallet, one venue,
// any number of bot instances plus named presets that can be merged into them.
type AppConfig struct {
	DBPath string      `json:"db_path"`
	Wallet WalletConfig `json:"wallet"`
	Venue  VenueConfig  `json:"venue"`
	Log    LogConfig    `json:"log"`
	Alert  AlertConfig  `json:"alert"`

	Instances []StrategyConfig        `json:"instances"`
	Presets   map[string]PresetConfig `json:"presets,omitempty"`
}

// WalletConfig describes the single wallet shared by all instances.
type WalletConfig struct {
	Balance    decimal.Decimal `json:"balance"`     // total quote-currency balance
	MinReserve decimal.Decimal `json:"min_reserve"` // never committed to trading
}

// VenueConfig selects and parameterizes the execution venue.
type VenueConfig struct {
	Name            string `json:"name"` // "binance" or "paper"
	IsTestnet       bool   `json:"is_testnet"`
	QuoteTTLSeconds int    `json:"quote_ttl_seconds"` // quote validity window, default 30

	// Paper venue only.
	PaperFeeBps      int64           `json:"paper_fee_bps,omitempty"`
	PaperSlippageBps int64           `json:"paper_slippage_bps,omitempty"`
	PaperStartPrice  decimal.Decimal `json:"paper_start_price,omitempty"`
}

// AlertConfig configures the fire-and-forget alert sink.
type AlertConfig struct {
	WebhookURL string `json:"webhook_url,omitempty"`
	BufferSize int    `json:"buffer_size,omitempty"`
}

// LogConfig mirrors the logger package's knobs.
type LogConfig struct {
	Level      string `json:"level"`       // "debug", "info", "warn", "error"
	Output     string `json:"output"`      // "console", "file", "both"
	File       string `json:"file"`        // log file path
	MaxSize    int    `json:"max_size"`    // max size of a single log file (MB)
	MaxBackups int    `json:"max_backups"` // rotated files to keep
	MaxAge     int    `json:"max_age"`     // days to keep rotated files
	Compress   bool   `json:"compress"`
}

// StrategyConfig holds every per-instance knob. It is immutable for the
// duration of a decision cycle; preset application produces a new value.
type StrategyConfig struct {
	InstanceID string `json:"instance_id"`
	Preset     string `json:"preset,omitempty"` // named preset merged over this config at load time
	Symbol     string `json:"symbol"`      // e.g. "SOLUSDC"
	BaseAsset  string `json:"base_asset"`  // e.g. "SOL"
	QuoteAsset string `json:"quote_asset"` // e.g. "USDC"

	// Entry / exit thresholds, in percent (0.6 means 0.6%).
	BuyDipPct   decimal.Decimal `json:"buy_dip_pct"`
	SellRisePct decimal.Decimal `json:"sell_rise_pct"`

	// Sizing.
	CompoundingMode       string          `json:"compounding_mode"` // FIXED | CALCULATED
	BaseTradeNotional     decimal.Decimal `json:"base_trade_notional"`
	MinTradeNotional      decimal.Decimal `json:"min_trade_notional"`
	CompoundingReservePct decimal.Decimal `json:"compounding_reserve_pct"`

	// Capital allocated to this instance, in quote units. Split across the
	// three reserve buckets on startup.
	AllocatedCapital decimal.Decimal `json:"allocated_capital"`

	// Risk limits.
	MaxSlippageBps         int64           `json:"max_slippage_bps"`
	MaxPriceImpactBps      int64           `json:"max_price_impact_bps"`
	MaxPriceDeviationBps   int64           `json:"max_price_deviation_bps"`
	DailyLossLimit         decimal.Decimal `json:"daily_loss_limit"` // quote units
	MaxDrawdownPct         decimal.Decimal `json:"max_drawdown_pct"`
	MaxConsecutiveFailures int             `json:"max_consecutive_failures"`

	// Rate limits.
	CooldownSeconds  int `json:"cooldown_seconds"`
	MaxTradesPerHour int `json:"max_trades_per_hour"`
	MaxTradesPerDay  int `json:"max_trades_per_day"`

	// Reserve buckets.
	RescueReservePct        decimal.Decimal `json:"rescue_reserve_pct"`         // share of allocated capital parked in rescue
	ChaseReservePct         decimal.Decimal `json:"chase_reserve_pct"`          // share of allocated capital parked in chase
	RescueEnterDrawdownPct  decimal.Decimal `json:"rescue_enter_drawdown_pct"`  // drawdown that activates rescue
	RescueExitHysteresisPct decimal.Decimal `json:"rescue_exit_hysteresis_pct"` // extra recovery required to leave rescue
	ExposureCapPct          decimal.Decimal `json:"exposure_cap_pct"`           // chase-mode exposure ceiling

	// Re-entry gating.
	CycleMode      string `json:"cycle_mode"`       // STANDARD | ROLLING_REBUY
	RebuyRegimeGate string `json:"rebuy_regime_gate"` // NONE | CHOP_ONLY

	// Exit ladder.
	ExitMode         string           `json:"exit_mode"` // FULL_EXIT | SCALE_OUT
	ScaleOutSteps    int              `json:"scale_out_steps"`
	ScaleOutRangePct decimal.Decimal  `json:"scale_out_range_pct"`
	ScaleOutLevels   []ScaleOutLevelConfig `json:"scale_out_levels,omitempty"` // custom schedule; wins over steps

	// Capital tier breakpoints, quote-currency notionals.
	TierSmallMax  decimal.Decimal `json:"tier_small_max"`
	TierMediumMax decimal.Decimal `json:"tier_medium_max"`

	// Execution cost model. GasPerSwapQuote is a flat per-swap cost estimate
	// in quote units; zero for venues that fold everything into fees.
	VenueFeeBps     int64           `json:"venue_fee_bps"`
	GasPerSwapQuote decimal.Decimal `json:"gas_per_swap_quote,omitempty"`

	// Venue retry / confirmation behavior.
	RetryAttempts       int `json:"retry_attempts"`
	RetryInitialDelayMs int `json:"retry_initial_delay_ms"`
	RetryMaxDelayMs     int `json:"retry_max_delay_ms"`
	ConfirmPollAttempts int `json:"confirm_poll_attempts"`

	// Regime classifier thresholds. Zero values fall back to defaults.
	RegimeWindowHours      int   `json:"regime_window_hours,omitempty"`
	RegimeTrendBps         int64 `json:"regime_trend_bps,omitempty"`
	RegimeVolatileRangeBps int64 `json:"regime_volatile_range_bps,omitempty"`
	RegimeChopReversals    int   `json:"regime_chop_reversals,omitempty"`

	CycleIntervalSeconds int `json:"cycle_interval_seconds"`
}

// ScaleOutLevelConfig is one entry of a custom exit schedule: a trigger
// expressed as percent above entry, and the share of the position to exit.
type ScaleOutLevelConfig struct {
	TriggerPct decimal.Decimal `json:"trigger_pct"`
	ExitPct    decimal.Decimal `json:"exit_pct"`
}

// PresetConfig is a named, versioned partial override of StrategyConfig.
// Only non-nil fields are applied; merging never clears an unset field.
type PresetConfig struct {
	Name    string `json:"name"`
	Version int    `json:"version"`

	BuyDipPct   *decimal.Decimal `json:"buy_dip_pct,omitempty"`
	SellRisePct *decimal.Decimal `json:"sell_rise_pct,omitempty"`

	CompoundingMode       *string          `json:"compounding_mode,omitempty"`
	BaseTradeNotional     *decimal.Decimal `json:"base_trade_notional,omitempty"`
	MinTradeNotional      *decimal.Decimal `json:"min_trade_notional,omitempty"`
	CompoundingReservePct *decimal.Decimal `json:"compounding_reserve_pct,omitempty"`

	MaxSlippageBps         *int64           `json:"max_slippage_bps,omitempty"`
	MaxPriceImpactBps      *int64           `json:"max_price_impact_bps,omitempty"`
	MaxPriceDeviationBps   *int64           `json:"max_price_deviation_bps,omitempty"`
	DailyLossLimit         *decimal.Decimal `json:"daily_loss_limit,omitempty"`
	MaxDrawdownPct         *decimal.Decimal `json:"max_drawdown_pct,omitempty"`
	MaxConsecutiveFailures *int             `json:"max_consecutive_failures,omitempty"`

	CooldownSeconds  *int `json:"cooldown_seconds,omitempty"`
	MaxTradesPerHour *int `json:"max_trades_per_hour,omitempty"`
	MaxTradesPerDay  *int `json:"max_trades_per_day,omitempty"`

	CycleMode       *string `json:"cycle_mode,omitempty"`
	RebuyRegimeGate *string `json:"rebuy_regime_gate,omitempty"`

	ExitMode         *string          `json:"exit_mode,omitempty"`
	ScaleOutSteps    *int             `json:"scale_out_steps,omitempty"`
	ScaleOutRangePct *decimal.Decimal `json:"scale_out_range_pct,omitempty"`
}
