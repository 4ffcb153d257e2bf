package strategy

import (
	"context"
	"sync"
	"time"

	"spot-trade-bot-go/internal/models"
	"spot-trade-bot-go/internal/venue"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeClock advances only when slept on or explicitly moved.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, dur time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(dur)
	return nil
}

func (c *fakeClock) Advance(dur time.Duration) { c.now = c.now.Add(dur) }

// scriptedVenue is a fake venue driven by a settable price and optional
// per-call error scripts.
type scriptedVenue struct {
	mu    sync.Mutex
	clock venue.Clock
	ttl   time.Duration

	price       decimal.Decimal
	impactBps   int64
	slippageBps int64
	balances    models.Balances

	quoteErrs []error // consumed front to back before serving quotes
	swapErrs  []error // consumed front to back before executing swaps

	quoteCalls int
	swapCalls  int
	executed   []string // client order ids in execution order
}

func newScriptedVenue(clock venue.Clock) *scriptedVenue {
	return &scriptedVenue{
		clock:    clock,
		ttl:      30 * time.Second,
		price:    d("100"),
		balances: models.Balances{Base: d("100"), Quote: d("100000"), NativeForGas: d("1")},
	}
}

func (v *scriptedVenue) GetBalances(ctx context.Context) (*models.Balances, error) {
	b := v.balances
	return &b, nil
}

func (v *scriptedVenue) GetQuote(ctx context.Context, req venue.QuoteRequest) (*models.Quote, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.quoteCalls++
	if len(v.quoteErrs) > 0 {
		err := v.quoteErrs[0]
		v.quoteErrs = v.quoteErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	now := v.clock.Now()
	q := &models.Quote{
		Side:           req.Side,
		Price:          v.price,
		PriceImpactBps: v.impactBps,
		AmountIsBase:   req.AmountIsBase,
		IssuedAt:       now,
		ExpiresAt:      now.Add(v.ttl),
	}
	switch {
	case req.Side == models.Buy && !req.AmountIsBase:
		q.InputAmount = req.Amount
		q.OutputAmount = req.Amount.Div(v.price)
	case req.Side == models.Buy:
		q.InputAmount = req.Amount.Mul(v.price)
		q.OutputAmount = req.Amount
	case req.AmountIsBase:
		q.InputAmount = req.Amount
		q.OutputAmount = req.Amount.Mul(v.price)
	default:
		q.InputAmount = req.Amount.Div(v.price)
		q.OutputAmount = req.Amount
	}
	return q, nil
}

func (v *scriptedVenue) ExecuteSwap(ctx context.Context, quote *models.Quote, clientOrderID string) (*models.SwapResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.swapCalls++
	if len(v.swapErrs) > 0 {
		err := v.swapErrs[0]
		v.swapErrs = v.swapErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if quote.Expired(v.clock.Now()) {
		return nil, models.QuoteError("quote expired", nil)
	}

	execPrice := quote.Price
	if v.slippageBps != 0 {
		adj := quote.Price.Mul(decimal.NewFromInt(v.slippageBps)).Div(decimal.NewFromInt(10000))
		if quote.Side == models.Buy {
			execPrice = execPrice.Add(adj)
		} else {
			execPrice = execPrice.Sub(adj)
		}
	}

	var out decimal.Decimal
	if quote.Side == models.Buy {
		out = quote.InputAmount.Div(execPrice)
	} else {
		out = quote.InputAmount.Mul(execPrice)
	}

	v.executed = append(v.executed, clientOrderID)
	return &models.SwapResult{
		Success:           true,
		TxID:              "tx-" + clientOrderID,
		ExecutedPrice:     execPrice,
		InputAmount:       quote.InputAmount,
		OutputAmount:      out,
		ActualSlippageBps: v.slippageBps,
	}, nil
}

func (v *scriptedVenue) WaitForConfirmation(ctx context.Context, txID string) error { return nil }

func (v *scriptedVenue) CheckConnectivity(ctx context.Context) (*models.Connectivity, error) {
	return &models.Connectivity{Connected: true}, nil
}

// memJournal is an in-memory OrderJournal with the same duplicate-rejection
// contract as the Badger-backed one.
type memJournal struct {
	mu      sync.Mutex
	records map[string]*models.OrderRecord
}

func newMemJournal() *memJournal {
	return &memJournal{records: make(map[string]*models.OrderRecord)}
}

func (j *memJournal) Record(rec *models.OrderRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.records[rec.ClientOrderID]; ok {
		return models.DuplicateOrderError(rec.ClientOrderID)
	}
	j.records[rec.ClientOrderID] = rec
	return nil
}

func (j *memJournal) Lookup(clientOrderID string) (*models.OrderRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.records[clientOrderID], nil
}

func testConfig() *models.StrategyConfig {
	return &models.StrategyConfig{
		InstanceID:             "inst-test",
		Symbol:                 "SOLUSDC",
		BaseAsset:              "SOL",
		QuoteAsset:             "USDC",
		BuyDipPct:              d("0.6"),
		SellRisePct:            d("1.2"),
		CompoundingMode:        models.CompoundingFixed,
		BaseTradeNotional:      d("100"),
		MinTradeNotional:       d("10"),
		AllocatedCapital:       d("1000"),
		MaxSlippageBps:         100,
		MaxPriceImpactBps:      200,
		MaxConsecutiveFailures: 3,
		RescueReservePct:       d("20"),
		ChaseReservePct:        d("10"),
		RescueEnterDrawdownPct: d("10"),
		RescueExitHysteresisPct: d("3"),
		CycleMode:              models.CycleModeStandard,
		RebuyRegimeGate:        models.RebuyGateNone,
		ExitMode:               models.ExitModeFull,
		ScaleOutSteps:          3,
		ScaleOutRangePct:       d("3"),
		TierSmallMax:           d("100"),
		TierMediumMax:          d("500"),
		VenueFeeBps:            10,
		RetryAttempts:          3,
		RetryInitialDelayMs:    10,
		RetryMaxDelayMs:        100,
		ConfirmPollAttempts:    3,
		RegimeWindowHours:      6,
		RegimeTrendBps:         150,
		RegimeVolatileRangeBps: 500,
		RegimeChopReversals:    6,
	}
}
