// Package bot runs one strategy instance: a sequential decision-cycle loop
// that owns the instance's StrategyState exclusively and persists a snapshot
// of it after every cycle.
package bot

import (
	"context"
	"time"

	"spot-trade-bot-go/internal/alert"
	"spot-trade-bot-go/internal/models"
	"spot-trade-bot-go/internal/persistence"
	"spot-trade-bot-go/internal/strategy"
	"spot-trade-bot-go/internal/venue"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Instance is one running bot. Cycles never overlap: the loop runs them
// strictly one at a time, and stop signals are honored only at cycle
// boundaries so no in-flight execution is interrupted.
type Instance struct {
	cfg    *models.StrategyConfig
	venue  venue.Venue
	engine *strategy.Engine
	repo   persistence.StateRepository
	alerts alert.Sink
	clock  venue.Clock
	log    *zap.SugaredLogger

	state     *models.StrategyState
	sessionID string

	persistCh   chan *models.StrategyState
	stopCh      chan struct{}
	doneCh      chan struct{}
	persistDone chan struct{}
}

// NewInstance restores the instance's state from the repository (or starts
// fresh) and prepares the cycle loop.
func NewInstance(cfg *models.StrategyConfig, v venue.Venue, engine *strategy.Engine, repo persistence.StateRepository, alerts alert.Sink, clock venue.Clock, log *zap.SugaredLogger) (*Instance, error) {
	state, err := repo.LoadState(cfg.InstanceID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = models.NewStrategyState(cfg, clock.Now())
		log.Infow("starting with fresh state", "instanceId", cfg.InstanceID)
	} else {
		log.Infow("restored persisted state",
			"instanceId", cfg.InstanceID,
			"tradeCount", state.TradeCount,
			"realizedPnl", state.RealizedPnL.String())
	}

	return &Instance{
		cfg:       cfg,
		venue:     v,
		engine:    engine,
		repo:      repo,
		alerts:    alerts,
		clock:     clock,
		log:       log,
		state:     state,
		sessionID: uuid.NewString(),
		persistCh:   make(chan *models.StrategyState, 128),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		persistDone: make(chan struct{}),
	}, nil
}

// Start launches the persistence and cycle loops.
func (i *Instance) Start(ctx context.Context) error {
	conn, err := i.venue.CheckConnectivity(ctx)
	if err != nil || !conn.Connected {
		return models.RPCError("venue connectivity check failed at startup", err)
	}
	i.log.Infow("instance started",
		"instanceId", i.cfg.InstanceID, "sessionId", i.sessionID,
		"symbol", i.cfg.Symbol, "latencyMs", conn.LatencyMs)

	go i.persistenceLoop()
	go i.run(ctx)
	return nil
}

// Stop requests a cooperative shutdown, waits for the current cycle to finish
// and for every queued snapshot to reach the repository.
func (i *Instance) Stop() {
	close(i.stopCh)
	<-i.doneCh
	<-i.persistDone
}

// State returns a deep copy of the current strategy state for safe concurrent
// reading (reporting, dashboards).
func (i *Instance) State() *models.StrategyState {
	return snapshotState(i.state)
}

// SessionID identifies this run of the instance.
func (i *Instance) SessionID() string { return i.sessionID }

// Config exposes the instance's immutable configuration.
func (i *Instance) Config() *models.StrategyConfig { return i.cfg }

func (i *Instance) run(ctx context.Context) {
	defer close(i.doneCh)
	defer close(i.persistCh)

	interval := time.Duration(i.cfg.CycleIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-i.stopCh:
			i.log.Infow("instance stopping", "instanceId", i.cfg.InstanceID)
			return
		case <-ctx.Done():
			i.log.Infow("instance context cancelled", "instanceId", i.cfg.InstanceID)
			return
		case <-ticker.C:
			i.runCycle(ctx)
		}
	}
}

func (i *Instance) runCycle(ctx context.Context) {
	wasPaused := i.state.Paused

	balances, err := i.venue.GetBalances(ctx)
	if err != nil {
		i.log.Warnw("balance fetch failed",
			"instanceId", i.cfg.InstanceID, "err", err)
		i.finishCycle(i.engine.RecordFault(i.state, i.clock.Now(), "balance fetch failed"), wasPaused)
		return
	}
	quote, err := i.venue.GetQuote(ctx, venue.QuoteRequest{
		Side:        models.Buy,
		Amount:      i.cfg.BaseTradeNotional,
		SlippageBps: i.cfg.MaxSlippageBps,
	})
	if err != nil {
		i.log.Warnw("quote fetch failed",
			"instanceId", i.cfg.InstanceID, "err", err)
		i.finishCycle(i.engine.RecordFault(i.state, i.clock.Now(), "quote fetch failed"), wasPaused)
		return
	}

	action := i.engine.RunCycle(ctx, i.state, &strategy.CycleInput{
		Now:      i.clock.Now(),
		Balances: balances,
		Quote:    quote,
	})
	i.finishCycle(action, wasPaused)
}

// finishCycle emits the cycle's alerts and hands a snapshot to the
// persistence goroutine; the loop itself never blocks on disk.
func (i *Instance) finishCycle(action *models.StrategyAction, wasPaused bool) {
	i.emitAlerts(action, wasPaused)

	select {
	case i.persistCh <- snapshotState(i.state):
	default:
		i.log.Warnw("persistence queue full, snapshot dropped",
			"instanceId", i.cfg.InstanceID)
	}
}

func (i *Instance) emitAlerts(action *models.StrategyAction, wasPaused bool) {
	meta := map[string]string{
		"instanceId": i.cfg.InstanceID,
		"sessionId":  i.sessionID,
		"symbol":     i.cfg.Symbol,
	}
	switch action.Type {
	case models.ActionBuy, models.ActionSell:
		i.alerts.Emit(alert.Event("trade_executed",
			string(action.Type)+" "+i.cfg.Symbol, action.Reason, meta))
	case models.ActionPause:
		if !wasPaused {
			i.alerts.Emit(alert.Event("circuit_breaker",
				"instance paused: "+i.cfg.InstanceID, action.Reason, meta))
		}
	}
}

func (i *Instance) persistenceLoop() {
	defer close(i.persistDone)
	for state := range i.persistCh {
		if err := i.repo.SaveState(i.cfg.InstanceID, state); err != nil {
			i.log.Errorw("CRITICAL: failed to persist state",
				"instanceId", i.cfg.InstanceID, "err", err)
		}
	}
}

// snapshotState deep-copies the strategy state so the persistence goroutine
// and readers never race the cycle loop.
func snapshotState(state *models.StrategyState) *models.StrategyState {
	if state == nil {
		return nil
	}
	copied := *state
	if state.Position != nil {
		pos := *state.Position
		if state.Position.Levels != nil {
			pos.Levels = make([]models.ScaleOutLevel, len(state.Position.Levels))
			copy(pos.Levels, state.Position.Levels)
		}
		copied.Position = &pos
	}
	return &copied
}
