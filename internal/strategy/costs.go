// Package strategy contains the trade decision pipeline: cost gating, regime
// classification, sizing, capital tiers, split execution, exit ladders,
// reserve buckets and the orchestrating engine.
package strategy

import (
	"spot-trade-bot-go/internal/models"
	"spot-trade-bot-go/internal/numeric"

	"github.com/shopspring/decimal"
)

// CostCalculator estimates the round-trip execution cost of an intended trade
// and the expected net edge after that cost.
type CostCalculator struct {
	feeBps   int64
	gasQuote decimal.Decimal // flat per-swap estimate, quote units
}

// NewCostCalculator builds the calculator from per-instance config. gasQuote
// is the per-swap gas estimate in quote units; zero for venues that charge
// fees only.
func NewCostCalculator(cfg *models.StrategyConfig, gasQuote decimal.Decimal) *CostCalculator {
	return &CostCalculator{feeBps: cfg.VenueFeeBps, gasQuote: gasQuote}
}

// CostEstimate breaks down the expected round-trip cost of one position,
// entry plus exit, in quote units.
type CostEstimate struct {
	Fees      decimal.Decimal
	Gas       decimal.Decimal
	Slippage  decimal.Decimal
	Total     decimal.Decimal
	GrossGain decimal.Decimal
	NetEdge   decimal.Decimal
}

// Gated reports whether the trade must be held back: a non-positive net edge
// is never traded, and never downgraded to a smaller size.
func (e *CostEstimate) Gated() bool {
	return e.NetEdge.LessThanOrEqual(decimal.Zero)
}

// Estimate computes the expected cost of entering and exiting notional quote
// units, using the quote's observed price impact as the per-leg slippage
// expectation, against the gross gain the configured sellRisePct would yield.
func (c *CostCalculator) Estimate(quote *models.Quote, notional decimal.Decimal, cfg *models.StrategyConfig) *CostEstimate {
	two := decimal.NewFromInt(2)

	fees := numeric.ApplyBps(notional, c.feeBps).Mul(two)
	gas := c.gasQuote.Mul(two)
	slippage := numeric.ApplyBps(notional, quote.PriceImpactBps).Mul(two)
	total := fees.Add(gas).Add(slippage)

	gross := numeric.ApplyPct(notional, cfg.SellRisePct)
	return &CostEstimate{
		Fees:      fees,
		Gas:       gas,
		Slippage:  slippage,
		Total:     total,
		GrossGain: gross,
		NetEdge:   gross.Sub(total),
	}
}
