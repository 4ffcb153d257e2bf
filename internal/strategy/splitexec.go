package strategy

import (
	"context"
	"fmt"
	"time"

	"spot-trade-bot-go/internal/models"
	"spot-trade-bot-go/internal/orderid"
	"spot-trade-bot-go/internal/persistence"
	"spot-trade-bot-go/internal/venue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SplitExecutor executes a sized trade as one or more sequential chunks.
// Chunks run strictly in order: each fill's realized slippage informs whether
// the next chunk is issued at all. Already-filled chunks are never reversed.
type SplitExecutor struct {
	cfg     *models.StrategyConfig
	venue   venue.Venue
	journal persistence.OrderJournal
	clock   venue.Clock
	policy  venue.RetryPolicy
	log     *zap.SugaredLogger
}

// NewSplitExecutor wires the executor for one instance.
func NewSplitExecutor(cfg *models.StrategyConfig, v venue.Venue, journal persistence.OrderJournal, clock venue.Clock, log *zap.SugaredLogger) *SplitExecutor {
	return &SplitExecutor{
		cfg:     cfg,
		venue:   v,
		journal: journal,
		clock:   clock,
		policy:  venue.PolicyFromConfig(cfg),
		log:     log,
	}
}

// Execute runs the trade in mode.Chunks sequential chunks. decisionAt anchors
// the idempotent order ids: re-running the same decision reuses the same ids
// and is rejected by the journal rather than double-executed.
//
// The returned result always reflects what actually filled, even when an
// error aborted the run early.
func (e *SplitExecutor) Execute(ctx context.Context, side models.Side, size *models.TradeSize, mode models.ExecutionMode, decisionAt time.Time) (*models.SplitExecutionResult, error) {
	amount, amountIsBase := size.QuoteAmount, false
	if !size.BaseAmount.IsZero() {
		amount, amountIsBase = size.BaseAmount, true
	}

	chunks := mode.Chunks
	if chunks < 1 {
		chunks = 1
	}
	// The last chunk absorbs the division residue so the chunk total equals
	// the intended amount exactly.
	chunkAmount := amount.Div(decimal.NewFromInt(int64(chunks))).RoundDown(8)
	lastAmount := amount.Sub(chunkAmount.Mul(decimal.NewFromInt(int64(chunks - 1))))

	result := &models.SplitExecutionResult{}
	var quote *models.Quote
	var quotedAmount decimal.Decimal

	for i := 0; i < chunks; i++ {
		thisAmount := chunkAmount
		if i == chunks-1 {
			thisAmount = lastAmount
		}
		// Honor cooperative cancellation between chunks, never mid-chunk.
		if err := ctx.Err(); err != nil {
			result.AbortReason = "cancelled"
			return result, err
		}

		if quote == nil || quote.Expired(e.clock.Now()) || !quotedAmount.Equal(thisAmount) {
			fresh, err := e.fetchQuote(ctx, side, thisAmount, amountIsBase)
			if err != nil {
				result.AbortReason = fmt.Sprintf("quote fetch failed: %v", err)
				return result, err
			}
			quote = fresh
			quotedAmount = thisAmount
		}

		if quote.PriceImpactBps > e.cfg.MaxPriceImpactBps && e.cfg.MaxPriceImpactBps > 0 {
			result.AbortReason = fmt.Sprintf("price impact %d bps exceeds limit %d", quote.PriceImpactBps, e.cfg.MaxPriceImpactBps)
			return result, models.PriceImpactError(result.AbortReason)
		}

		clientOrderID := orderid.New(e.cfg.InstanceID, side, decisionAt, i)
		if err := e.journal.Record(&models.OrderRecord{
			ClientOrderID: clientOrderID,
			InstanceID:    e.cfg.InstanceID,
			Side:          side,
			Amount:        thisAmount,
			AmountIsBase:  amountIsBase,
			CreatedAt:     e.clock.Now(),
		}); err != nil {
			result.AbortReason = fmt.Sprintf("order journal rejected chunk %d: %v", i, err)
			return result, err
		}

		swap, err := e.executeChunk(ctx, quote, clientOrderID)
		if err != nil {
			result.AbortReason = fmt.Sprintf("chunk %d failed: %v", i, err)
			return result, err
		}

		result.Chunks = append(result.Chunks, models.ChunkResult{
			Index:         i,
			ClientOrderID: clientOrderID,
			InputAmount:   swap.InputAmount,
			OutputAmount:  swap.OutputAmount,
			ExecutedPrice: swap.ExecutedPrice,
			SlippageBps:   swap.ActualSlippageBps,
			Fees:          swap.Fees,
		})
		result.TotalInput = result.TotalInput.Add(swap.InputAmount)
		result.TotalOutput = result.TotalOutput.Add(swap.OutputAmount)
		result.TotalFees = result.TotalFees.Add(swap.Fees)

		if swap.ActualSlippageBps > e.cfg.MaxSlippageBps {
			result.AbortReason = fmt.Sprintf("chunk %d slippage %d bps exceeds limit %d", i, swap.ActualSlippageBps, e.cfg.MaxSlippageBps)
			e.log.Warnw("split execution aborted on slippage",
				"instanceId", e.cfg.InstanceID, "chunk", i,
				"slippageBps", swap.ActualSlippageBps, "limitBps", e.cfg.MaxSlippageBps)
			e.finalize(result, side)
			return result, models.SlippageExceededError(result.AbortReason)
		}
	}

	result.Completed = true
	e.finalize(result, side)
	return result, nil
}

func (e *SplitExecutor) fetchQuote(ctx context.Context, side models.Side, amount decimal.Decimal, amountIsBase bool) (*models.Quote, error) {
	var quote *models.Quote
	err := venue.Retry(ctx, e.clock, e.policy, func(ctx context.Context) error {
		q, err := e.venue.GetQuote(ctx, venue.QuoteRequest{
			Side:         side,
			Amount:       amount,
			AmountIsBase: amountIsBase,
			SlippageBps:  e.cfg.MaxSlippageBps,
		})
		if err != nil {
			return err
		}
		quote = q
		return nil
	})
	return quote, err
}

// executeChunk submits the swap and waits for confirmation. The retry reuses
// the same clientOrderID, so an ambiguous failure that actually executed is
// surfaced as DUPLICATE_ORDER by the venue instead of filling twice.
func (e *SplitExecutor) executeChunk(ctx context.Context, quote *models.Quote, clientOrderID string) (*models.SwapResult, error) {
	var swap *models.SwapResult
	err := venue.Retry(ctx, e.clock, e.policy, func(ctx context.Context) error {
		res, err := e.venue.ExecuteSwap(ctx, quote, clientOrderID)
		if err != nil {
			return err
		}
		swap = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := e.venue.WaitForConfirmation(ctx, swap.TxID); err != nil {
		return nil, err
	}
	return swap, nil
}

// finalize computes the size-weighted average executed price over what
// filled. The ratio is taken in quote-per-base terms regardless of side.
func (e *SplitExecutor) finalize(result *models.SplitExecutionResult, side models.Side) {
	if len(result.Chunks) == 0 {
		return
	}
	quoteTotal, baseTotal := result.TotalInput, result.TotalOutput
	if side == models.Sell {
		quoteTotal, baseTotal = result.TotalOutput, result.TotalInput
	}
	if !baseTotal.IsZero() {
		result.AvgPrice = quoteTotal.Div(baseTotal)
	}
}
