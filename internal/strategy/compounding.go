package strategy

import (
	"spot-trade-bot-go/internal/models"
	"spot-trade-bot-go/internal/numeric"

	"github.com/shopspring/decimal"
)

// SizeResult is the compounding calculator's output: the next trade's quote
// notional, flagged when the computed size had to be bumped to the minimum.
type SizeResult struct {
	Notional     decimal.Decimal
	BelowMinimum bool
}

// NextTradeNotional computes the next trade's quote-currency size.
// FIXED uses the configured base notional unchanged. CALCULATED grows the
// base notional by realized cumulative gains, after parking
// compoundingReservePct of those gains. The result is never below
// minTradeNotional; a raise to the minimum sets BelowMinimum so the caller
// can choose to skip.
func NextTradeNotional(cfg *models.StrategyConfig, state *models.StrategyState) SizeResult {
	size := cfg.BaseTradeNotional

	if cfg.CompoundingMode == models.CompoundingCalculated {
		gains := state.RealizedPnL
		if gains.GreaterThan(decimal.Zero) {
			reserved := numeric.ApplyPct(gains, cfg.CompoundingReservePct)
			size = size.Add(gains.Sub(reserved))
		}
		// Losses shrink the size symmetrically, but never below zero here;
		// the minimum clamp below has the final word.
		if gains.LessThan(decimal.Zero) {
			size = size.Add(gains)
		}
	}

	if size.LessThan(cfg.MinTradeNotional) {
		return SizeResult{Notional: cfg.MinTradeNotional, BelowMinimum: true}
	}
	return SizeResult{Notional: size}
}
