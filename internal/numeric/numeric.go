// Package numeric holds the decimal arithmetic helpers shared by the trading
// pipeline. All money math goes through shopspring/decimal; binary floating
// point is never used for balances, fees or PnL.
package numeric

import (
	"github.com/shopspring/decimal"
)

var (
	hundred    = decimal.NewFromInt(100)
	tenKay     = decimal.NewFromInt(10000)
)

// ApplyBps returns value * bps / 10000.
func ApplyBps(value decimal.Decimal, bps int64) decimal.Decimal {
	return value.Mul(decimal.NewFromInt(bps)).Div(tenKay)
}

// ApplyPct returns value * pct / 100.
func ApplyPct(value, pct decimal.Decimal) decimal.Decimal {
	return value.Mul(pct).Div(hundred)
}

// BpsOf returns part/whole expressed in basis points, rounded to the nearest
// integer. A zero whole yields zero.
func BpsOf(part, whole decimal.Decimal) int64 {
	if whole.IsZero() {
		return 0
	}
	return part.Div(whole).Mul(tenKay).Round(0).IntPart()
}

// PctToBps converts a percent value to basis points.
func PctToBps(pct decimal.Decimal) int64 {
	return pct.Mul(hundred).Round(0).IntPart()
}

// DeviationBps returns |a-b| relative to reference b, in basis points.
func DeviationBps(a, b decimal.Decimal) int64 {
	if b.IsZero() {
		return 0
	}
	return a.Sub(b).Abs().Div(b).Mul(tenKay).Round(0).IntPart()
}

// RangeBps returns (high-low) relative to mid, in basis points.
func RangeBps(high, low decimal.Decimal) int64 {
	mid := high.Add(low).Div(decimal.NewFromInt(2))
	if mid.IsZero() {
		return 0
	}
	return high.Sub(low).Div(mid).Mul(tenKay).Round(0).IntPart()
}

// PriceAbovePct returns base * (1 + pct/100).
func PriceAbovePct(base, pct decimal.Decimal) decimal.Decimal {
	return base.Add(ApplyPct(base, pct))
}

// PriceBelowPct returns base * (1 - pct/100).
func PriceBelowPct(base, pct decimal.Decimal) decimal.Decimal {
	return base.Sub(ApplyPct(base, pct))
}
