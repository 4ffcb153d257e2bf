package strategy

import (
	"testing"

	"spot-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newReserveFixture(t *testing.T) (*ReserveManager, *models.StrategyState) {
	t.Helper()
	cfg := testConfig()
	m := NewReserveManager(cfg, zap.NewNop().Sugar())
	state := models.NewStrategyState(cfg, openedAt())
	return m, state
}

func TestBucketsFundedFromAllocation(t *testing.T) {
	_, state := newReserveFixture(t)

	// 1000 allocated: 20% rescue, 10% chase, remainder normal.
	assert.True(t, state.Reserve.Normal.Balance.Equal(d("700")))
	assert.True(t, state.Reserve.Rescue.Balance.Equal(d("200")))
	assert.True(t, state.Reserve.Chase.Balance.Equal(d("100")))
	assert.True(t, state.Reserve.Total().Equal(d("1000")), "bucket sum equals allocation")
	assert.Equal(t, models.BucketNormal, state.Reserve.Active)
}

func TestDrawdownActivatesRescue(t *testing.T) {
	m, state := newReserveFixture(t)

	// 12% drawdown from peak 1000, past the 10% threshold.
	state.RealizedPnL = d("-120")
	m.Evaluate(state, Classification{Regime: RegimeChop})

	assert.Equal(t, models.BucketRescue, state.Reserve.Active)
	assert.True(t, m.RiskReducingOnly(state))
	assert.True(t, m.SpendableCapital(state).IsZero(), "rescue suspends buys")
}

func TestRescueExitRequiresHysteresis(t *testing.T) {
	m, state := newReserveFixture(t)

	state.RealizedPnL = d("-120")
	m.Evaluate(state, Classification{Regime: RegimeChop})
	require.Equal(t, models.BucketRescue, state.Reserve.Active)

	// Recovered to 9% drawdown: below the 10% entry threshold but not past
	// the 3% hysteresis band (needs <= 7%).
	state.RealizedPnL = d("-90")
	m.Evaluate(state, Classification{Regime: RegimeChop})
	assert.Equal(t, models.BucketRescue, state.Reserve.Active, "still inside the hysteresis band")

	state.RealizedPnL = d("-70")
	m.Evaluate(state, Classification{Regime: RegimeChop})
	assert.Equal(t, models.BucketNormal, state.Reserve.Active)
}

func TestChaseRequiresTrendAndPositivePerformance(t *testing.T) {
	m, state := newReserveFixture(t)

	// Trending up but flat performance: no chase.
	m.Evaluate(state, Classification{Regime: RegimeTrendingUp})
	assert.Equal(t, models.BucketNormal, state.Reserve.Active)

	state.DailyRealizedPnL = d("25")
	state.RealizedPnL = d("25")
	m.Evaluate(state, Classification{Regime: RegimeTrendingUp})
	assert.Equal(t, models.BucketChase, state.Reserve.Active)

	// Chop pulls chase back to normal.
	m.Evaluate(state, Classification{Regime: RegimeChop})
	assert.Equal(t, models.BucketNormal, state.Reserve.Active)
}

func TestChaseSpendableCappedByExposure(t *testing.T) {
	cfg := testConfig()
	cfg.ExposureCapPct = d("75")
	m := NewReserveManager(cfg, zap.NewNop().Sugar())
	state := models.NewStrategyState(cfg, openedAt())
	state.Reserve.Active = models.BucketChase

	// Normal 700 + chase 100 = 800, capped at 75% of 1000.
	assert.True(t, m.SpendableCapital(state).Equal(d("750")))
}

func TestAtMostOneActiveBucket(t *testing.T) {
	m, state := newReserveFixture(t)

	state.DailyRealizedPnL = d("25")
	state.RealizedPnL = d("25")
	m.Evaluate(state, Classification{Regime: RegimeTrendingUp})

	active := 0
	for _, gated := range []bool{state.Reserve.Normal.Gated, state.Reserve.Rescue.Gated, state.Reserve.Chase.Gated} {
		if !gated {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestDebitDrainsNormalBeforeChase(t *testing.T) {
	m, state := newReserveFixture(t)
	state.Reserve.Active = models.BucketChase

	m.DebitActive(state, d("750"))
	assert.True(t, state.Reserve.Normal.Balance.IsZero())
	assert.True(t, state.Reserve.Chase.Balance.Equal(d("50")))

	m.CreditNormal(state, d("300"))
	assert.True(t, state.Reserve.Normal.Balance.Equal(d("300")))
}
