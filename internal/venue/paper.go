package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"spot-trade-bot-go/internal/models"
	"spot-trade-bot-go/internal/numeric"

	"github.com/shopspring/decimal"
)

// PaperVenue is a deterministic in-memory venue used for paper trading and
// tests. Price is set by the caller; fills apply a fixed fee and an adverse
// slippage in basis points.
type PaperVenue struct {
	mu          sync.Mutex
	clock       Clock
	ttl         time.Duration
	feeBps      int64
	slippageBps int64

	price decimal.Decimal
	base  decimal.Decimal
	quote decimal.Decimal
	seen  map[string]bool
}

// NewPaperVenue builds a paper venue from config. Balances start empty;
// call Deposit before trading.
func NewPaperVenue(cfg models.VenueConfig, clock Clock) *PaperVenue {
	return &PaperVenue{
		clock:       clock,
		ttl:         time.Duration(cfg.QuoteTTLSeconds) * time.Second,
		feeBps:      cfg.PaperFeeBps,
		slippageBps: cfg.PaperSlippageBps,
		price:       cfg.PaperStartPrice,
		seen:        make(map[string]bool),
	}
}

// SetPrice moves the simulated market price.
func (v *PaperVenue) SetPrice(p decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.price = p
}

// Price returns the current simulated price.
func (v *PaperVenue) Price() decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.price
}

// Deposit credits the simulated wallet.
func (v *PaperVenue) Deposit(base, quote decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.base = v.base.Add(base)
	v.quote = v.quote.Add(quote)
}

func (v *PaperVenue) GetBalances(ctx context.Context) (*models.Balances, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return &models.Balances{
		Base:         v.base,
		Quote:        v.quote,
		NativeForGas: decimal.NewFromInt(1),
	}, nil
}

func (v *PaperVenue) GetQuote(ctx context.Context, req QuoteRequest) (*models.Quote, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.price.LessThanOrEqual(decimal.Zero) {
		return nil, models.QuoteError("paper price not set", nil)
	}
	now := v.clock.Now()
	q := &models.Quote{
		Side:           req.Side,
		Price:          v.price,
		PriceImpactBps: v.slippageBps,
		AmountIsBase:   req.AmountIsBase,
		IssuedAt:       now,
		ExpiresAt:      now.Add(v.ttl),
	}
	switch {
	case req.Side == models.Buy && req.AmountIsBase:
		q.InputAmount = req.Amount.Mul(v.price)
		q.OutputAmount = req.Amount
	case req.Side == models.Buy:
		q.InputAmount = req.Amount
		q.OutputAmount = req.Amount.Div(v.price)
	case req.AmountIsBase:
		q.InputAmount = req.Amount
		q.OutputAmount = req.Amount.Mul(v.price)
	default:
		q.InputAmount = req.Amount.Div(v.price)
		q.OutputAmount = req.Amount
	}
	return q, nil
}

func (v *PaperVenue) ExecuteSwap(ctx context.Context, quote *models.Quote, clientOrderID string) (*models.SwapResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.seen[clientOrderID] {
		return nil, models.DuplicateOrderError(clientOrderID)
	}
	if quote.Expired(v.clock.Now()) {
		return nil, models.QuoteError("quote expired", nil)
	}

	// Fills are adverse by the configured slippage.
	var execPrice decimal.Decimal
	if quote.Side == models.Buy {
		execPrice = quote.Price.Add(numeric.ApplyBps(quote.Price, v.slippageBps))
	} else {
		execPrice = quote.Price.Sub(numeric.ApplyBps(quote.Price, v.slippageBps))
	}

	var in, out, fees decimal.Decimal
	if quote.Side == models.Buy {
		in = quote.InputAmount // quote units
		if in.GreaterThan(v.quote) {
			return nil, models.InsufficientBalanceError(
				fmt.Sprintf("need %s quote, have %s", in, v.quote))
		}
		out = in.Div(execPrice)
		fees = numeric.ApplyBps(in, v.feeBps)
		out = out.Sub(fees.Div(execPrice))
		v.quote = v.quote.Sub(in)
		v.base = v.base.Add(out)
	} else {
		in = quote.InputAmount // base units
		if in.GreaterThan(v.base) {
			return nil, models.InsufficientBalanceError(
				fmt.Sprintf("need %s base, have %s", in, v.base))
		}
		out = in.Mul(execPrice)
		fees = numeric.ApplyBps(out, v.feeBps)
		out = out.Sub(fees)
		v.base = v.base.Sub(in)
		v.quote = v.quote.Add(out)
	}

	v.seen[clientOrderID] = true
	return &models.SwapResult{
		Success:           true,
		TxID:              "paper-" + clientOrderID,
		ExecutedPrice:     execPrice,
		InputAmount:       in,
		OutputAmount:      out,
		ActualSlippageBps: numeric.DeviationBps(execPrice, quote.Price),
		Fees:              fees,
	}, nil
}

func (v *PaperVenue) WaitForConfirmation(ctx context.Context, txID string) error {
	return nil
}

func (v *PaperVenue) CheckConnectivity(ctx context.Context) (*models.Connectivity, error) {
	return &models.Connectivity{Connected: true, LatencyMs: 0}, nil
}
