// Package venue defines the execution-venue capability consumed by the
// trading pipeline and its concrete adapters. Implementations are
// interchangeable: the engine only ever sees this interface, and tests
// substitute a scripted fake.
package venue

import (
	"context"
	"time"

	"spot-trade-bot-go/internal/models"

	"github.com/shopspring/decimal"
)

// QuoteRequest describes the quote the pipeline needs for one trade or chunk.
type QuoteRequest struct {
	Side          models.Side
	Amount        decimal.Decimal
	AmountIsBase  bool
	SlippageBps   int64
	SourceFilters []string
}

// Venue is the capability every execution venue provides. All calls are
// suspension points and take a context; ExecuteSwap must reject a duplicate
// clientOrderID rather than re-execute.
type Venue interface {
	GetBalances(ctx context.Context) (*models.Balances, error)
	GetQuote(ctx context.Context, req QuoteRequest) (*models.Quote, error)
	ExecuteSwap(ctx context.Context, quote *models.Quote, clientOrderID string) (*models.SwapResult, error)
	WaitForConfirmation(ctx context.Context, txID string) error
	CheckConnectivity(ctx context.Context) (*models.Connectivity, error)
}

// Clock abstracts time for retry, quote-expiry and rate-limit logic so tests
// run without real timing.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
