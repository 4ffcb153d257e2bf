package strategy

import (
	"context"
	"fmt"
	"time"

	"spot-trade-bot-go/internal/allocator"
	"spot-trade-bot-go/internal/models"
	"spot-trade-bot-go/internal/numeric"
	"spot-trade-bot-go/internal/ratelimit"
	"spot-trade-bot-go/internal/venue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine sequences the full decision pipeline and emits exactly one
// StrategyAction per cycle. It is the only component that mutates
// StrategyState, and only between venue calls of its own cycle.
type Engine struct {
	cfg        *models.StrategyConfig
	executor   *SplitExecutor
	ledger     *allocator.WalletLedger
	window     *Window
	classifier *Classifier
	costs      *CostCalculator
	scaleOut   *ScaleOutManager
	reserves   *ReserveManager
	clock      venue.Clock
	tradeRate  *ratelimit.Bucket
	log        *zap.SugaredLogger
}

// NewEngine wires the pipeline for one instance. The trade-rate bucket tops
// out at maxTradesPerHour and refills accordingly, smoothing bursts inside
// the hour on top of the hard hourly counter.
func NewEngine(cfg *models.StrategyConfig, executor *SplitExecutor, ledger *allocator.WalletLedger, window *Window, clock venue.Clock, log *zap.SugaredLogger) *Engine {
	var bucket *ratelimit.Bucket
	if cfg.MaxTradesPerHour > 0 {
		bucket = ratelimit.NewBucket(cfg.MaxTradesPerHour, float64(cfg.MaxTradesPerHour)/3600, clock.Now())
	}
	return &Engine{
		cfg:        cfg,
		executor:   executor,
		ledger:     ledger,
		window:     window,
		classifier: NewClassifier(cfg),
		costs:      NewCostCalculator(cfg, cfg.GasPerSwapQuote),
		scaleOut:   NewScaleOutManager(cfg),
		reserves:   NewReserveManager(cfg, log),
		clock:      clock,
		tradeRate:  bucket,
		log:        log,
	}
}

// CycleInput is everything one decision cycle observes.
type CycleInput struct {
	Now            time.Time
	Balances       *models.Balances
	Quote          *models.Quote
	SecondaryPrice decimal.Decimal // zero when no secondary source is configured
}

// RunCycle runs one full decision cycle against state, mutating it in place,
// and returns the single action taken.
func (e *Engine) RunCycle(ctx context.Context, state *models.StrategyState, in *CycleInput) *models.StrategyAction {
	rollCounters(state, in.Now)
	state.LastUpdateTime = in.Now

	if state.Paused {
		return models.PauseAction(state.PauseReason)
	}
	if action := e.checkCircuitBreakers(state); action != nil {
		return action
	}

	price := in.Quote.Price
	if action := e.checkDataQuality(in); action != nil {
		return action
	}

	e.window.Observe(in.Now, price)
	regime := e.classifier.Classify(e.window.Snapshot())
	e.reserves.Evaluate(state, regime)

	// Exits always run before entries: reducing risk is never gated by
	// cooldowns, rate limits or regime.
	if state.Position != nil && state.Position.Status != models.PositionClosed {
		if action := e.evaluateExit(ctx, state, price, in.Now); action != nil {
			return action
		}
		if e.cfg.CycleMode == models.CycleModeStandard {
			return models.HoldAction("position open, waiting on exit conditions")
		}
	}

	return e.evaluateEntry(ctx, state, regime, in)
}

// RecordFault counts a venue fault seen outside the execution path (a failed
// balance or quote fetch) toward the consecutive-failure breaker. A venue
// whose data endpoints are persistently down pauses the instance just like
// repeated execution failures would.
func (e *Engine) RecordFault(state *models.StrategyState, now time.Time, reason string) *models.StrategyAction {
	rollCounters(state, now)
	state.LastUpdateTime = now

	if state.Paused {
		return models.PauseAction(state.PauseReason)
	}
	state.ConsecutiveFailures++
	if action := e.checkCircuitBreakers(state); action != nil {
		return action
	}
	return models.HoldAction(reason)
}

func (e *Engine) checkCircuitBreakers(state *models.StrategyState) *models.StrategyAction {
	trip := func(reason string) *models.StrategyAction {
		state.Paused = true
		state.PauseReason = reason
		e.log.Errorw("circuit breaker tripped", "instanceId", e.cfg.InstanceID, "reason", reason)
		return models.PauseAction(reason)
	}

	if e.cfg.MaxConsecutiveFailures > 0 && state.ConsecutiveFailures >= e.cfg.MaxConsecutiveFailures {
		return trip(fmt.Sprintf("%d consecutive failures", state.ConsecutiveFailures))
	}
	if e.cfg.DailyLossLimit.GreaterThan(decimal.Zero) && state.DailyRealizedPnL.LessThanOrEqual(e.cfg.DailyLossLimit.Neg()) {
		return trip(fmt.Sprintf("daily loss %s breached limit %s", state.DailyRealizedPnL, e.cfg.DailyLossLimit))
	}
	if e.cfg.MaxDrawdownPct.GreaterThan(decimal.Zero) {
		if dd := e.reserves.Drawdown(state); dd.GreaterThanOrEqual(e.cfg.MaxDrawdownPct) {
			return trip(fmt.Sprintf("drawdown %s%% breached limit %s%%", dd.Round(2), e.cfg.MaxDrawdownPct))
		}
	}
	return nil
}

func (e *Engine) checkDataQuality(in *CycleInput) *models.StrategyAction {
	if e.cfg.MaxPriceDeviationBps > 0 && in.SecondaryPrice.GreaterThan(decimal.Zero) {
		dev := numeric.DeviationBps(in.Quote.Price, in.SecondaryPrice)
		if dev > e.cfg.MaxPriceDeviationBps {
			return models.HoldAction(fmt.Sprintf("price sources deviate by %d bps", dev))
		}
	}
	if e.cfg.MaxPriceImpactBps > 0 && in.Quote.PriceImpactBps > e.cfg.MaxPriceImpactBps {
		return models.HoldAction(fmt.Sprintf("price impact %d bps exceeds limit %d", in.Quote.PriceImpactBps, e.cfg.MaxPriceImpactBps))
	}
	return nil
}

// evaluateExit returns a non-nil action when the ladder produced one
// (including a HOLD for an extension); nil means nothing to exit this cycle.
func (e *Engine) evaluateExit(ctx context.Context, state *models.StrategyState, price decimal.Decimal, now time.Time) *models.StrategyAction {
	decision := e.scaleOut.Evaluate(state.Position, price)
	if decision.Extend {
		e.scaleOut.Extend(state.Position)
		return models.HoldAction(decision.Reason)
	}
	if !decision.Sell {
		return nil
	}

	size := models.BaseSize(decision.SizeBase)
	_, mode := EvaluateExecution(decision.SizeBase.Mul(price), e.cfg)

	result, err := e.executor.Execute(ctx, models.Sell, size, mode, now)
	if !result.Filled() && err != nil {
		state.ConsecutiveFailures++
		e.log.Errorw("exit execution failed",
			"instanceId", e.cfg.InstanceID, "err", err, "reason", result.AbortReason)
		return models.HoldAction(fmt.Sprintf("exit failed: %v", err))
	}

	// Partial fills update the remaining size; the untouched remainder waits
	// for the next cycle rather than being retried here.
	e.applySellFill(state, decision, result, now)
	if err != nil {
		return models.SellAction(size, fmt.Sprintf("%s (partial: %s)", decision.Reason, result.AbortReason))
	}
	return models.SellAction(size, decision.Reason)
}

func (e *Engine) applySellFill(state *models.StrategyState, decision *ExitDecision, result *models.SplitExecutionResult, now time.Time) {
	soldBase := result.TotalInput
	proceeds := result.TotalOutput

	var basis decimal.Decimal
	if state.PositionSize.GreaterThan(decimal.Zero) {
		basis = state.CostBasisTotal.Mul(soldBase).Div(state.PositionSize)
	}
	pnl := proceeds.Sub(basis)

	state.RealizedPnL = state.RealizedPnL.Add(pnl)
	state.DailyRealizedPnL = state.DailyRealizedPnL.Add(pnl)
	state.CostBasisTotal = state.CostBasisTotal.Sub(basis)
	state.PositionSize = state.PositionSize.Sub(soldBase)
	if state.PositionSize.IsNegative() {
		state.PositionSize = decimal.Zero
	}
	state.LastSellPrice = result.AvgPrice
	state.LastTradeAt = now
	state.TradesThisHour++
	state.TradesToday++
	state.TradeCount++
	if pnl.GreaterThan(decimal.Zero) {
		state.WinCount++
	}
	state.ConsecutiveFailures = 0

	e.reserves.CreditNormal(state, proceeds)
	e.scaleOut.ApplyFill(state.Position, decision.LevelIndex, soldBase)
	e.updateEquityMarks(state)

	e.log.Infow("exit filled",
		"instanceId", e.cfg.InstanceID,
		"soldBase", soldBase.String(), "proceeds", proceeds.String(),
		"pnl", pnl.String(), "avgPrice", result.AvgPrice.String(),
		"positionStatus", state.Position.Status)
}

func (e *Engine) evaluateEntry(ctx context.Context, state *models.StrategyState, regime Classification, in *CycleInput) *models.StrategyAction {
	price := in.Quote.Price

	if e.reserves.RiskReducingOnly(state) {
		return models.HoldAction("rescue active, buys suspended")
	}

	// Dip check against the last trade reference. A fresh instance with no
	// reference enters at market.
	ref := state.LastSellPrice
	if ref.IsZero() {
		ref = state.LastBuyPrice
	}
	isRebuy := state.TradeCount > 0
	if !ref.IsZero() {
		trigger := numeric.PriceBelowPct(ref, e.cfg.BuyDipPct)
		if price.GreaterThan(trigger) {
			return models.HoldAction(fmt.Sprintf("waiting for dip below %s", trigger.Round(6)))
		}
	}

	if isRebuy && e.cfg.RebuyRegimeGate == models.RebuyGateChopOnly &&
		state.Reserve.Active != models.BucketChase && regime.Regime != RegimeChop {
		return models.HoldAction(fmt.Sprintf("rebuy gated, regime is %s", regime.Regime))
	}

	if action := e.checkRateLimits(state, in.Now); action != nil {
		return action
	}

	sizing := NextTradeNotional(e.cfg, state)
	if sizing.BelowMinimum {
		return models.HoldAction("computed size below minimum notional")
	}
	notional := sizing.Notional

	spendable := e.reserves.SpendableCapital(state)
	if notional.GreaterThan(spendable) {
		notional = spendable
	}
	if notional.LessThan(e.cfg.MinTradeNotional) {
		return models.HoldAction("active bucket cannot fund minimum notional")
	}
	if in.Balances.Quote.LessThan(notional) {
		return models.HoldAction(fmt.Sprintf("wallet quote balance %s below trade size %s", in.Balances.Quote, notional))
	}

	estimate := e.costs.Estimate(in.Quote, notional, e.cfg)
	if estimate.Gated() {
		// Never downgraded to a smaller trade: no partial-edge execution.
		return models.HoldAction("cost-gated")
	}

	tier, mode := EvaluateExecution(notional, e.cfg)

	plan := &models.TradePlan{
		InstanceID: e.cfg.InstanceID,
		Side:       models.Buy,
		Notional:   notional,
		CreatedAt:  in.Now,
	}
	verdict := e.ledger.Check(plan)
	if !verdict.Allowed {
		return models.HoldAction("wallet guardrail: " + verdict.Reason)
	}
	defer e.ledger.Release(e.cfg.InstanceID, notional)

	size := models.QuoteSize(notional)
	result, err := e.executor.Execute(ctx, models.Buy, size, mode, in.Now)
	if !result.Filled() {
		state.ConsecutiveFailures++
		e.log.Errorw("entry execution failed",
			"instanceId", e.cfg.InstanceID, "err", err, "reason", result.AbortReason)
		return models.HoldAction(fmt.Sprintf("entry failed: %v", err))
	}

	e.applyBuyFill(state, result, in.Now)
	reason := fmt.Sprintf("dip entry, %s tier, %d chunk(s)", tier, mode.Chunks)
	if err != nil {
		reason = fmt.Sprintf("%s (partial: %s)", reason, result.AbortReason)
	}
	return models.BuyAction(size, reason)
}

func (e *Engine) checkRateLimits(state *models.StrategyState, now time.Time) *models.StrategyAction {
	if e.cfg.CooldownSeconds > 0 && !state.LastTradeAt.IsZero() {
		elapsed := now.Sub(state.LastTradeAt)
		cooldown := time.Duration(e.cfg.CooldownSeconds) * time.Second
		if elapsed < cooldown {
			return models.HoldAction(fmt.Sprintf("cooldown, %s remaining", (cooldown - elapsed).Round(time.Second)))
		}
	}
	if e.cfg.MaxTradesPerHour > 0 && state.TradesThisHour >= e.cfg.MaxTradesPerHour {
		return models.HoldAction("hourly trade limit reached")
	}
	if e.cfg.MaxTradesPerDay > 0 && state.TradesToday >= e.cfg.MaxTradesPerDay {
		return models.HoldAction("daily trade limit reached")
	}
	if e.tradeRate != nil && !e.tradeRate.Allow(now) {
		return models.HoldAction("trade rate limiter exhausted")
	}
	return nil
}

func (e *Engine) applyBuyFill(state *models.StrategyState, result *models.SplitExecutionResult, now time.Time) {
	spent := result.TotalInput
	acquired := result.TotalOutput

	state.LastBuyPrice = result.AvgPrice
	state.LastTradeAt = now
	state.TradesThisHour++
	state.TradesToday++
	state.TradeCount++
	state.ConsecutiveFailures = 0
	state.CostBasisTotal = state.CostBasisTotal.Add(spent).Add(result.TotalFees)
	state.PositionSize = state.PositionSize.Add(acquired)

	e.reserves.DebitActive(state, spent)

	// A rolling rebuy into an open position rebuilds the ladder around the
	// size-weighted entry of the combined holding.
	if pos := state.Position; pos != nil && pos.Status != models.PositionClosed && pos.RemainingSize.GreaterThan(decimal.Zero) {
		combined := pos.RemainingSize.Add(acquired)
		entry := pos.EntryPrice.Mul(pos.RemainingSize).Add(result.AvgPrice.Mul(acquired)).Div(combined)
		state.Position = e.scaleOut.OpenPosition(entry, combined, now)
	} else {
		state.Position = e.scaleOut.OpenPosition(result.AvgPrice, acquired, now)
	}
	e.updateEquityMarks(state)

	e.log.Infow("entry filled",
		"instanceId", e.cfg.InstanceID,
		"spent", spent.String(), "acquired", acquired.String(),
		"avgPrice", result.AvgPrice.String(), "chunks", len(result.Chunks))
}

func (e *Engine) updateEquityMarks(state *models.StrategyState) {
	equity := e.cfg.AllocatedCapital.Add(state.RealizedPnL)
	if equity.GreaterThan(state.PeakEquity) {
		state.PeakEquity = equity
	}
	if dd := e.reserves.Drawdown(state); dd.GreaterThan(state.MaxDrawdownPct) {
		state.MaxDrawdownPct = dd
	}
}

// rollCounters resets the hourly/daily counters exactly once when now crosses
// into a new hour/day relative to the stored reset timestamps.
func rollCounters(state *models.StrategyState, now time.Time) {
	hour := now.UTC().Truncate(time.Hour)
	if hour.After(state.HourResetAt) {
		state.TradesThisHour = 0
		state.HourResetAt = hour
	}
	day := now.UTC().Truncate(24 * time.Hour)
	if day.After(state.DayResetAt) {
		state.TradesToday = 0
		state.DailyRealizedPnL = decimal.Zero
		state.DayResetAt = day
	}
}
