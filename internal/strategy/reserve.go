package strategy

import (
	"spot-trade-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReserveManager runs the 3-bucket capital machine (normal / rescue / chase).
// At most one bucket is active at a time. Rescue activates on drawdown and
// only allows risk-reducing trades; chase activates on a confirmed favorable
// regime with positive recent performance and raises the exposure ceiling.
type ReserveManager struct {
	cfg *models.StrategyConfig
	log *zap.SugaredLogger
}

// NewReserveManager builds the manager for one instance.
func NewReserveManager(cfg *models.StrategyConfig, log *zap.SugaredLogger) *ReserveManager {
	return &ReserveManager{cfg: cfg, log: log}
}

// Drawdown returns the instance's current drawdown in percent, from peak
// equity to current equity (allocated capital plus realized PnL).
func (m *ReserveManager) Drawdown(state *models.StrategyState) decimal.Decimal {
	equity := m.cfg.AllocatedCapital.Add(state.RealizedPnL)
	if state.PeakEquity.LessThanOrEqual(decimal.Zero) || equity.GreaterThanOrEqual(state.PeakEquity) {
		return decimal.Zero
	}
	return state.PeakEquity.Sub(equity).Div(state.PeakEquity).Mul(oneHundred)
}

// Evaluate runs one bucket transition step. Regime and drawdown are checked
// every cycle; leaving rescue requires recovery past the hysteresis band, not
// merely back across the entry threshold.
func (m *ReserveManager) Evaluate(state *models.StrategyState, regime Classification) {
	drawdown := m.Drawdown(state)
	reserve := &state.Reserve

	prev := reserve.Active
	switch reserve.Active {
	case models.BucketRescue:
		exitBelow := m.cfg.RescueEnterDrawdownPct.Sub(m.cfg.RescueExitHysteresisPct)
		if drawdown.LessThanOrEqual(exitBelow) {
			reserve.Active = models.BucketNormal
		}
	case models.BucketChase:
		if drawdown.GreaterThanOrEqual(m.cfg.RescueEnterDrawdownPct) {
			reserve.Active = models.BucketRescue
		} else if !m.chaseConditions(state, regime) {
			reserve.Active = models.BucketNormal
		}
	default:
		if m.cfg.RescueEnterDrawdownPct.GreaterThan(decimal.Zero) && drawdown.GreaterThanOrEqual(m.cfg.RescueEnterDrawdownPct) {
			reserve.Active = models.BucketRescue
		} else if m.chaseConditions(state, regime) {
			reserve.Active = models.BucketChase
		}
	}

	reserve.Normal.Gated = reserve.Active != models.BucketNormal
	reserve.Rescue.Gated = reserve.Active != models.BucketRescue
	reserve.Chase.Gated = reserve.Active != models.BucketChase

	if reserve.Active != prev {
		m.log.Infow("reserve bucket transition",
			"instanceId", state.InstanceID,
			"from", prev, "to", reserve.Active,
			"drawdownPct", drawdown.String(), "regime", regime.Regime)
	}
}

// chaseConditions: regime confirmed non-choppy and trending favorably, with
// positive recent realized performance.
func (m *ReserveManager) chaseConditions(state *models.StrategyState, regime Classification) bool {
	if m.cfg.ChaseReservePct.LessThanOrEqual(decimal.Zero) {
		return false
	}
	return regime.Regime == RegimeTrendingUp &&
		state.DailyRealizedPnL.GreaterThan(decimal.Zero)
}

// RiskReducingOnly reports whether only risk-reducing trades (exits) are
// allowed right now.
func (m *ReserveManager) RiskReducingOnly(state *models.StrategyState) bool {
	return state.Reserve.Active == models.BucketRescue
}

// SpendableCapital returns the quote capital the active bucket allows a buy
// to draw on. Chase mode may exceed the normal bucket up to exposureCapPct of
// the allocation.
func (m *ReserveManager) SpendableCapital(state *models.StrategyState) decimal.Decimal {
	reserve := state.Reserve
	switch reserve.Active {
	case models.BucketChase:
		combined := reserve.Normal.Balance.Add(reserve.Chase.Balance)
		if m.cfg.ExposureCapPct.GreaterThan(decimal.Zero) {
			ceiling := m.cfg.AllocatedCapital.Mul(m.cfg.ExposureCapPct).Div(oneHundred)
			if combined.GreaterThan(ceiling) {
				return ceiling
			}
		}
		return combined
	case models.BucketRescue:
		return decimal.Zero
	default:
		return reserve.Normal.Balance
	}
}

// DebitActive subtracts a buy's spend from the bucket(s) backing it, draining
// normal before chase. The bucket-sum invariant holds because credits and
// debits always land in a bucket.
func (m *ReserveManager) DebitActive(state *models.StrategyState, amount decimal.Decimal) {
	reserve := &state.Reserve
	fromNormal := amount
	if fromNormal.GreaterThan(reserve.Normal.Balance) {
		fromNormal = reserve.Normal.Balance
	}
	reserve.Normal.Balance = reserve.Normal.Balance.Sub(fromNormal)
	rest := amount.Sub(fromNormal)
	if rest.GreaterThan(decimal.Zero) && reserve.Active == models.BucketChase {
		reserve.Chase.Balance = reserve.Chase.Balance.Sub(rest)
	}
}

// CreditNormal returns sale proceeds to the normal bucket.
func (m *ReserveManager) CreditNormal(state *models.StrategyState, amount decimal.Decimal) {
	state.Reserve.Normal.Balance = state.Reserve.Normal.Balance.Add(amount)
}
