package persistence

import (
	"testing"
	"time"

	"spot-trade-bot-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStateRoundTrip(t *testing.T) {
	store := openTestStore(t)

	state := &models.StrategyState{
		LastBuyPrice:        decimal.RequireFromString("101.25"),
		ConsecutiveFailures: 2,
		TradesToday:         7,
		RealizedPnL:         decimal.RequireFromString("14.5"),
		LastUpdateTime:      time.UnixMilli(1724490000000).UTC(),
	}
	require.NoError(t, store.SaveState("inst-1", state))

	loaded, err := store.LoadState("inst-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.LastBuyPrice.Equal(state.LastBuyPrice))
	assert.Equal(t, 2, loaded.ConsecutiveFailures)
	assert.Equal(t, 7, loaded.TradesToday)
	assert.True(t, loaded.RealizedPnL.Equal(state.RealizedPnL))
}

func TestLoadStateMissingInstance(t *testing.T) {
	store := openTestStore(t)

	loaded, err := store.LoadState("never-saved")
	require.NoError(t, err)
	assert.Nil(t, loaded, "missing state is (nil, nil), not an error")
}

func TestStatesAreIsolatedPerInstance(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveState("inst-a", &models.StrategyState{TradesToday: 1}))
	require.NoError(t, store.SaveState("inst-b", &models.StrategyState{TradesToday: 9}))

	a, err := store.LoadState("inst-a")
	require.NoError(t, err)
	b, err := store.LoadState("inst-b")
	require.NoError(t, err)
	assert.Equal(t, 1, a.TradesToday)
	assert.Equal(t, 9, b.TradesToday)
}

func TestOrderJournalRejectsDuplicates(t *testing.T) {
	store := openTestStore(t)

	rec := &models.OrderRecord{
		ClientOrderID: "sb-abc123",
		InstanceID:    "inst-1",
		Side:          models.Buy,
		Amount:        decimal.RequireFromString("100"),
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.Record(rec))

	err := store.Record(rec)
	require.Error(t, err)
	assert.Equal(t, models.CodeDuplicateOrder, models.ErrorCode(err))
	assert.False(t, models.IsRetryable(err))
}

func TestOrderJournalLookup(t *testing.T) {
	store := openTestStore(t)

	missing, err := store.Lookup("sb-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	rec := &models.OrderRecord{
		ClientOrderID: "sb-found",
		InstanceID:    "inst-2",
		Side:          models.Sell,
		Amount:        decimal.RequireFromString("0.5"),
		AmountIsBase:  true,
	}
	require.NoError(t, store.Record(rec))

	got, err := store.Lookup("sb-found")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "inst-2", got.InstanceID)
	assert.Equal(t, models.Sell, got.Side)
	assert.True(t, got.AmountIsBase)
}
