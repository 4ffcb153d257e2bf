package strategy

import (
	"spot-trade-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// Tier maps a quote notional onto a capital tier via the configured
// breakpoints. Pure function, nothing stored.
func Tier(notional decimal.Decimal, cfg *models.StrategyConfig) models.CapitalTier {
	switch {
	case notional.LessThanOrEqual(cfg.TierSmallMax):
		return models.TierSmall
	case notional.LessThanOrEqual(cfg.TierMediumMax):
		return models.TierMedium
	default:
		return models.TierLarge
	}
}

// EvaluateExecution returns the tier and how to execute a trade of that
// notional. SMALL and MEDIUM execute single-shot. LARGE always splits, with
// the chunk count chosen so each chunk lands in the MEDIUM tier or below;
// ties round the count up, but a chunk is never pushed below
// minTradeNotional.
func EvaluateExecution(notional decimal.Decimal, cfg *models.StrategyConfig) (models.CapitalTier, models.ExecutionMode) {
	tier := Tier(notional, cfg)
	if tier != models.TierLarge {
		return tier, models.SingleExecution()
	}

	chunks := int(notional.Div(cfg.TierMediumMax).Ceil().IntPart())
	if chunks < 2 {
		chunks = 2
	}
	chunkCount := decimal.NewFromInt(int64(chunks))
	for chunks > 1 && notional.Div(chunkCount).LessThan(cfg.MinTradeNotional) {
		chunks--
		chunkCount = decimal.NewFromInt(int64(chunks))
	}
	if chunks == 1 {
		return tier, models.SingleExecution()
	}
	return tier, models.SplitExecution(chunks)
}
