package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"spot-trade-bot-go/internal/allocator"
	"spot-trade-bot-go/internal/models"
	"spot-trade-bot-go/internal/persistence"
	"spot-trade-bot-go/internal/strategy"
	"spot-trade-bot-go/internal/venue"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockRepo records saves and serves a canned state.
type mockRepo struct {
	mu     sync.Mutex
	stored map[string]*models.StrategyState
	saves  int
}

func newMockRepo() *mockRepo {
	return &mockRepo{stored: make(map[string]*models.StrategyState)}
}

func (r *mockRepo) SaveState(instanceID string, state *models.StrategyState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored[instanceID] = state
	r.saves++
	return nil
}

func (r *mockRepo) LoadState(instanceID string) (*models.StrategyState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stored[instanceID], nil
}

func (r *mockRepo) Close() error { return nil }

func (r *mockRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// slowRepo delays every save so shutdown ordering is observable.
type slowRepo struct {
	mockRepo
	delay time.Duration
}

func (r *slowRepo) SaveState(instanceID string, state *models.StrategyState) error {
	time.Sleep(r.delay)
	return r.mockRepo.SaveState(instanceID, state)
}

// faultyVenue serves balances but fails quotes on demand.
type faultyVenue struct {
	quoteErr error
	balances models.Balances
}

func (v *faultyVenue) GetBalances(ctx context.Context) (*models.Balances, error) {
	b := v.balances
	return &b, nil
}

func (v *faultyVenue) GetQuote(ctx context.Context, req venue.QuoteRequest) (*models.Quote, error) {
	if v.quoteErr != nil {
		return nil, v.quoteErr
	}
	now := time.Now()
	return &models.Quote{
		Side: req.Side, Price: decimal.RequireFromString("100"),
		InputAmount: req.Amount, IssuedAt: now, ExpiresAt: now.Add(30 * time.Second),
	}, nil
}

func (v *faultyVenue) ExecuteSwap(ctx context.Context, quote *models.Quote, clientOrderID string) (*models.SwapResult, error) {
	return nil, models.RPCError("unexpected swap", nil)
}

func (v *faultyVenue) WaitForConfirmation(ctx context.Context, txID string) error { return nil }

func (v *faultyVenue) CheckConnectivity(ctx context.Context) (*models.Connectivity, error) {
	return &models.Connectivity{Connected: true}, nil
}

type stubJournal struct{}

func (stubJournal) Record(*models.OrderRecord) error           { return nil }
func (stubJournal) Lookup(string) (*models.OrderRecord, error) { return nil, nil }

// recordSink captures emitted events for assertions.
type recordSink struct {
	mu     sync.Mutex
	events []models.AlertEvent
}

func (s *recordSink) Emit(event models.AlertEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordSink) Close() {}

func (s *recordSink) countByType(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func instanceTestConfig() *models.StrategyConfig {
	return &models.StrategyConfig{
		InstanceID:             "inst-1",
		Symbol:                 "SOLUSDC",
		BuyDipPct:              decimal.RequireFromString("0.6"),
		SellRisePct:            decimal.RequireFromString("1.2"),
		CompoundingMode:        models.CompoundingFixed,
		BaseTradeNotional:      decimal.RequireFromString("100"),
		MinTradeNotional:       decimal.RequireFromString("10"),
		AllocatedCapital:       decimal.RequireFromString("1000"),
		MaxSlippageBps:         100,
		MaxConsecutiveFailures: 3,
		ExitMode:               models.ExitModeFull,
		CycleMode:              models.CycleModeStandard,
		RebuyRegimeGate:        models.RebuyGateNone,
		RetryAttempts:          3,
		RetryInitialDelayMs:    10,
		RetryMaxDelayMs:        100,
		RegimeWindowHours:      6,
		CycleIntervalSeconds:   15,
	}
}

func newTestInstance(t *testing.T, cfg *models.StrategyConfig, v venue.Venue, repo persistence.StateRepository, sink *recordSink) *Instance {
	t.Helper()
	log := zap.NewNop().Sugar()
	clock := venue.RealClock()
	exec := strategy.NewSplitExecutor(cfg, v, stubJournal{}, clock, log)
	ledger := allocator.NewWalletLedger(models.WalletConfig{
		Balance:    decimal.RequireFromString("10000"),
		MinReserve: decimal.RequireFromString("100"),
	})
	engine := strategy.NewEngine(cfg, exec, ledger, strategy.NewWindow(cfg.RegimeWindowHours), clock, log)

	inst, err := NewInstance(cfg, v, engine, repo, sink, clock, log)
	require.NoError(t, err)
	return inst
}

func TestSnapshotStateIsDeepCopy(t *testing.T) {
	state := &models.StrategyState{
		InstanceID:  "inst-1",
		RealizedPnL: decimal.RequireFromString("12.5"),
		Position: &models.PositionState{
			Status:        models.PositionScaleOutActive,
			RemainingSize: decimal.RequireFromString("3"),
			Levels: []models.ScaleOutLevel{
				{Index: 0, Triggered: true},
				{Index: 1},
			},
		},
	}

	snap := snapshotState(state)
	require.NotNil(t, snap)

	// Mutating the original must not leak into the snapshot.
	state.Position.Levels[1].Triggered = true
	state.Position.RemainingSize = decimal.Zero
	state.RealizedPnL = decimal.Zero

	assert.False(t, snap.Position.Levels[1].Triggered)
	assert.True(t, snap.Position.RemainingSize.Equal(decimal.RequireFromString("3")))
	assert.True(t, snap.RealizedPnL.Equal(decimal.RequireFromString("12.5")))
}

func TestSnapshotStateNil(t *testing.T) {
	assert.Nil(t, snapshotState(nil))
}

func TestQuoteFetchFailuresPauseInstance(t *testing.T) {
	repo := newMockRepo()
	sink := &recordSink{}
	v := &faultyVenue{
		quoteErr: models.RPCError("quote endpoint down", nil),
		balances: models.Balances{Quote: decimal.RequireFromString("1000")},
	}
	inst := newTestInstance(t, instanceTestConfig(), v, repo, sink)

	ctx := context.Background()
	inst.runCycle(ctx)
	assert.Equal(t, 1, inst.state.ConsecutiveFailures)
	assert.False(t, inst.state.Paused)

	inst.runCycle(ctx)
	assert.Equal(t, 2, inst.state.ConsecutiveFailures)

	inst.runCycle(ctx)
	assert.True(t, inst.state.Paused)
	assert.Equal(t, 1, sink.countByType("circuit_breaker"))

	// Already paused: no duplicate alert, no further counting.
	inst.runCycle(ctx)
	assert.Equal(t, 3, inst.state.ConsecutiveFailures)
	assert.Equal(t, 1, sink.countByType("circuit_breaker"))
}

func TestStopWaitsForQueuedSnapshots(t *testing.T) {
	repo := &slowRepo{
		mockRepo: mockRepo{stored: make(map[string]*models.StrategyState)},
		delay:    5 * time.Millisecond,
	}
	sink := &recordSink{}
	inst := newTestInstance(t, instanceTestConfig(), &faultyVenue{}, repo, sink)

	require.NoError(t, inst.Start(context.Background()))
	for n := 0; n < 5; n++ {
		inst.persistCh <- snapshotState(&models.StrategyState{InstanceID: "inst-1"})
	}
	inst.Stop()

	assert.Equal(t, 5, repo.saveCount())
}

func TestStateRestoredFromRepository(t *testing.T) {
	repo := newMockRepo()
	persisted := &models.StrategyState{
		InstanceID:  "inst-1",
		TradeCount:  42,
		RealizedPnL: decimal.RequireFromString("99"),
		LastUpdateTime: time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.SaveState("inst-1", persisted))

	loaded, err := repo.LoadState("inst-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, 42, loaded.TradeCount)
}
