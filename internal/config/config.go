package config

import (
	"encoding/json"
	"fmt"
	"os"

	"spot-trade-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// Load reads and validates the JSON config file.
func Load(path string) (*models.AppConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	cfg := &models.AppConfig{}
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Instances {
		name := cfg.Instances[i].Preset
		if name == "" {
			continue
		}
		preset, ok := cfg.Presets[name]
		if !ok {
			return nil, models.ConfigurationError(fmt.Sprintf("instance %s references unknown preset %q", cfg.Instances[i].InstanceID, name))
		}
		cfg.Instances[i] = ApplyPreset(cfg.Instances[i], preset)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *models.AppConfig) {
	if cfg.DBPath == "" {
		cfg.DBPath = "data/bot-state"
	}
	if cfg.Venue.QuoteTTLSeconds == 0 {
		cfg.Venue.QuoteTTLSeconds = 30
	}
	if cfg.Alert.BufferSize == 0 {
		cfg.Alert.BufferSize = 64
	}
	for i := range cfg.Instances {
		inst := &cfg.Instances[i]
		if inst.CompoundingMode == "" {
			inst.CompoundingMode = models.CompoundingFixed
		}
		if inst.ExitMode == "" {
			inst.ExitMode = models.ExitModeFull
		}
		if inst.CycleMode == "" {
			inst.CycleMode = models.CycleModeStandard
		}
		if inst.RebuyRegimeGate == "" {
			inst.RebuyRegimeGate = models.RebuyGateChopOnly
		}
		if inst.RetryAttempts == 0 {
			inst.RetryAttempts = 4
		}
		if inst.RetryInitialDelayMs == 0 {
			inst.RetryInitialDelayMs = 250
		}
		if inst.RetryMaxDelayMs == 0 {
			inst.RetryMaxDelayMs = 5000
		}
		if inst.ConfirmPollAttempts == 0 {
			inst.ConfirmPollAttempts = 10
		}
		if inst.ScaleOutSteps == 0 {
			inst.ScaleOutSteps = 3
		}
		if inst.CycleIntervalSeconds == 0 {
			inst.CycleIntervalSeconds = 15
		}
		if inst.RegimeWindowHours == 0 {
			inst.RegimeWindowHours = 6
		}
		if inst.RegimeTrendBps == 0 {
			inst.RegimeTrendBps = 150
		}
		if inst.RegimeVolatileRangeBps == 0 {
			inst.RegimeVolatileRangeBps = 500
		}
		if inst.RegimeChopReversals == 0 {
			inst.RegimeChopReversals = 6
		}
	}
}

// Validate rejects configurations the pipeline cannot run safely. All
// failures are ConfigurationErrors.
func Validate(cfg *models.AppConfig) error {
	if len(cfg.Instances) == 0 {
		return models.ConfigurationError("no instances configured")
	}
	if cfg.Wallet.Balance.LessThanOrEqual(decimal.Zero) {
		return models.ConfigurationError("wallet balance must be positive")
	}
	if cfg.Wallet.MinReserve.IsNegative() {
		return models.ConfigurationError("wallet min_reserve cannot be negative")
	}

	seen := make(map[string]bool)
	for i := range cfg.Instances {
		if err := validateInstance(&cfg.Instances[i]); err != nil {
			return err
		}
		if seen[cfg.Instances[i].InstanceID] {
			return models.ConfigurationError(fmt.Sprintf("duplicate instance id %q", cfg.Instances[i].InstanceID))
		}
		seen[cfg.Instances[i].InstanceID] = true
	}
	return nil
}

func validateInstance(inst *models.StrategyConfig) error {
	fail := func(format string, args ...interface{}) error {
		return models.ConfigurationError(fmt.Sprintf("instance %s: ", inst.InstanceID) + fmt.Sprintf(format, args...))
	}

	if inst.InstanceID == "" {
		return models.ConfigurationError("instance id is required")
	}
	if inst.Symbol == "" {
		return fail("symbol is required")
	}
	if inst.BuyDipPct.LessThanOrEqual(decimal.Zero) || inst.SellRisePct.LessThanOrEqual(decimal.Zero) {
		return fail("buy_dip_pct and sell_rise_pct must be positive")
	}
	if inst.MaxSlippageBps <= 0 {
		return fail("max_slippage_bps must be positive")
	}
	if inst.MinTradeNotional.LessThanOrEqual(decimal.Zero) {
		return fail("min_trade_notional must be positive")
	}
	if inst.BaseTradeNotional.LessThan(inst.MinTradeNotional) {
		return fail("base_trade_notional below min_trade_notional")
	}
	if inst.AllocatedCapital.LessThanOrEqual(decimal.Zero) {
		return fail("allocated_capital must be positive")
	}

	switch inst.CompoundingMode {
	case models.CompoundingFixed, models.CompoundingCalculated:
	default:
		return fail("unknown compounding_mode %q", inst.CompoundingMode)
	}
	switch inst.ExitMode {
	case models.ExitModeFull, models.ExitModeScaleOut:
	default:
		return fail("unknown exit_mode %q", inst.ExitMode)
	}
	switch inst.CycleMode {
	case models.CycleModeStandard, models.CycleModeRollingRebuy:
	default:
		return fail("unknown cycle_mode %q", inst.CycleMode)
	}
	// Only CHOP_ONLY (and ungated) are validated gate behaviors.
	switch inst.RebuyRegimeGate {
	case models.RebuyGateNone, models.RebuyGateChopOnly:
	default:
		return fail("unsupported rebuy_regime_gate %q", inst.RebuyRegimeGate)
	}

	if inst.ExitMode == models.ExitModeScaleOut {
		if len(inst.ScaleOutLevels) > 0 {
			total := decimal.Zero
			for _, l := range inst.ScaleOutLevels {
				if l.ExitPct.LessThanOrEqual(decimal.Zero) || l.TriggerPct.LessThanOrEqual(decimal.Zero) {
					return fail("scale_out_levels entries must have positive trigger_pct and exit_pct")
				}
				total = total.Add(l.ExitPct)
			}
			if total.GreaterThan(decimal.NewFromInt(100)) {
				return fail("scale_out_levels exit percentages exceed 100")
			}
		} else {
			if inst.ScaleOutSteps <= 0 {
				return fail("scale_out_steps must be positive")
			}
			if inst.ScaleOutRangePct.LessThanOrEqual(decimal.Zero) {
				return fail("scale_out_range_pct must be positive")
			}
		}
	}

	if inst.TierSmallMax.LessThanOrEqual(decimal.Zero) || inst.TierMediumMax.LessThanOrEqual(inst.TierSmallMax) {
		return fail("tier breakpoints must satisfy 0 < tier_small_max < tier_medium_max")
	}

	rescuePlusChase := inst.RescueReservePct.Add(inst.ChaseReservePct)
	if rescuePlusChase.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return fail("rescue and chase reserve percentages leave no normal capital")
	}
	return nil
}

// ApplyPreset merges a preset's populated fields over cfg and returns the
// result. Fields the preset does not set are left untouched, so applying the
// same preset twice is a no-op.
func ApplyPreset(cfg models.StrategyConfig, p models.PresetConfig) models.StrategyConfig {
	if p.BuyDipPct != nil {
		cfg.BuyDipPct = *p.BuyDipPct
	}
	if p.SellRisePct != nil {
		cfg.SellRisePct = *p.SellRisePct
	}
	if p.CompoundingMode != nil {
		cfg.CompoundingMode = *p.CompoundingMode
	}
	if p.BaseTradeNotional != nil {
		cfg.BaseTradeNotional = *p.BaseTradeNotional
	}
	if p.MinTradeNotional != nil {
		cfg.MinTradeNotional = *p.MinTradeNotional
	}
	if p.CompoundingReservePct != nil {
		cfg.CompoundingReservePct = *p.CompoundingReservePct
	}
	if p.MaxSlippageBps != nil {
		cfg.MaxSlippageBps = *p.MaxSlippageBps
	}
	if p.MaxPriceImpactBps != nil {
		cfg.MaxPriceImpactBps = *p.MaxPriceImpactBps
	}
	if p.MaxPriceDeviationBps != nil {
		cfg.MaxPriceDeviationBps = *p.MaxPriceDeviationBps
	}
	if p.DailyLossLimit != nil {
		cfg.DailyLossLimit = *p.DailyLossLimit
	}
	if p.MaxDrawdownPct != nil {
		cfg.MaxDrawdownPct = *p.MaxDrawdownPct
	}
	if p.MaxConsecutiveFailures != nil {
		cfg.MaxConsecutiveFailures = *p.MaxConsecutiveFailures
	}
	if p.CooldownSeconds != nil {
		cfg.CooldownSeconds = *p.CooldownSeconds
	}
	if p.MaxTradesPerHour != nil {
		cfg.MaxTradesPerHour = *p.MaxTradesPerHour
	}
	if p.MaxTradesPerDay != nil {
		cfg.MaxTradesPerDay = *p.MaxTradesPerDay
	}
	if p.CycleMode != nil {
		cfg.CycleMode = *p.CycleMode
	}
	if p.RebuyRegimeGate != nil {
		cfg.RebuyRegimeGate = *p.RebuyRegimeGate
	}
	if p.ExitMode != nil {
		cfg.ExitMode = *p.ExitMode
	}
	if p.ScaleOutSteps != nil {
		cfg.ScaleOutSteps = *p.ScaleOutSteps
	}
	if p.ScaleOutRangePct != nil {
		cfg.ScaleOutRangePct = *p.ScaleOutRangePct
	}
	return cfg
}
