package strategy

import (
	"context"
	"testing"
	"time"

	"spot-trade-bot-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newExecutorFixture(t *testing.T) (*SplitExecutor, *scriptedVenue, *memJournal, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	fake := newScriptedVenue(clock)
	journal := newMemJournal()
	exec := NewSplitExecutor(testConfig(), fake, journal, clock, zap.NewNop().Sugar())
	return exec, fake, journal, clock
}

func TestSingleChunkBuy(t *testing.T) {
	exec, fake, journal, clock := newExecutorFixture(t)

	result, err := exec.Execute(context.Background(), models.Buy,
		models.QuoteSize(d("100")), models.SingleExecution(), clock.Now())

	require.NoError(t, err)
	assert.True(t, result.Completed)
	require.Len(t, result.Chunks, 1)
	assert.True(t, result.TotalInput.Equal(d("100")))
	assert.True(t, result.AvgPrice.Equal(d("100")))
	assert.Equal(t, 1, fake.swapCalls)

	rec, err := journal.Lookup(result.Chunks[0].ClientOrderID)
	require.NoError(t, err)
	assert.NotNil(t, rec, "every chunk is journaled before submission")
}

func TestChunksExecuteSequentiallyWithDistinctIDs(t *testing.T) {
	exec, fake, _, clock := newExecutorFixture(t)

	result, err := exec.Execute(context.Background(), models.Buy,
		models.QuoteSize(d("900")), models.SplitExecution(3), clock.Now())

	require.NoError(t, err)
	assert.True(t, result.Completed)
	require.Len(t, result.Chunks, 3)
	assert.True(t, result.TotalInput.Equal(d("900")))

	seen := map[string]bool{}
	for _, id := range fake.executed {
		assert.False(t, seen[id], "chunk ids must be distinct")
		seen[id] = true
	}
}

func TestLastChunkAbsorbsDivisionResidue(t *testing.T) {
	exec, fake, _, clock := newExecutorFixture(t)

	// 100 / 3 does not terminate; the chunks must still total exactly 100.
	result, err := exec.Execute(context.Background(), models.Buy,
		models.QuoteSize(d("100")), models.SplitExecution(3), clock.Now())

	require.NoError(t, err)
	require.Len(t, result.Chunks, 3)
	assert.True(t, result.TotalInput.Equal(d("100")), "chunk total drifted to %s", result.TotalInput)
	assert.True(t, result.Chunks[0].InputAmount.Equal(d("33.33333333")))
	assert.True(t, result.Chunks[2].InputAmount.Equal(d("33.33333334")))
	assert.Equal(t, 2, fake.quoteCalls, "the resized last chunk needs its own quote")
}

func TestAbortsOnExcessiveSlippageKeepingFills(t *testing.T) {
	exec, fake, _, clock := newExecutorFixture(t)
	fake.slippageBps = 150 // above the 100 bps limit

	result, err := exec.Execute(context.Background(), models.Buy,
		models.QuoteSize(d("900")), models.SplitExecution(3), clock.Now())

	require.Error(t, err)
	assert.Equal(t, models.CodeSlippageExceeded, models.ErrorCode(err))
	assert.False(t, result.Completed)
	assert.Contains(t, result.AbortReason, "slippage")
	// The first chunk filled and stays filled; chunks 2 and 3 never ran.
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, 1, fake.swapCalls)
	assert.True(t, result.TotalInput.Equal(d("300")))
}

func TestRefetchesExpiredQuote(t *testing.T) {
	exec, fake, _, clock := newExecutorFixture(t)
	fake.ttl = 5 * time.Second

	// Confirmation is instant, but each swap leaves the shared quote expired
	// by the time the next chunk starts.
	slowConfirm := &slowConfirmVenue{scriptedVenue: fake, clock: clock, delay: 6 * time.Second}
	exec = NewSplitExecutor(testConfig(), slowConfirm, newMemJournal(), clock, zap.NewNop().Sugar())

	result, err := exec.Execute(context.Background(), models.Buy,
		models.QuoteSize(d("900")), models.SplitExecution(3), clock.Now())

	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 3, fake.quoteCalls, "each chunk re-quoted after expiry")
}

func TestRetriesTransientQuoteFailure(t *testing.T) {
	exec, fake, _, clock := newExecutorFixture(t)
	fake.quoteErrs = []error{models.QuoteError("blip", nil)}

	result, err := exec.Execute(context.Background(), models.Buy,
		models.QuoteSize(d("100")), models.SingleExecution(), clock.Now())

	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, 2, fake.quoteCalls)
}

func TestFatalSwapErrorAbortsWithoutRetry(t *testing.T) {
	exec, fake, _, clock := newExecutorFixture(t)
	fake.swapErrs = []error{models.InsufficientBalanceError("broke")}

	result, err := exec.Execute(context.Background(), models.Buy,
		models.QuoteSize(d("100")), models.SingleExecution(), clock.Now())

	require.Error(t, err)
	assert.Equal(t, models.CodeInsufficientBalance, models.ErrorCode(err))
	assert.Empty(t, result.Chunks)
	assert.Equal(t, 1, fake.swapCalls)
}

func TestSameDecisionRejectedByJournal(t *testing.T) {
	exec, _, _, clock := newExecutorFixture(t)
	decisionAt := clock.Now()

	_, err := exec.Execute(context.Background(), models.Buy,
		models.QuoteSize(d("100")), models.SingleExecution(), decisionAt)
	require.NoError(t, err)

	// Re-running the identical decision derives the same id and is rejected
	// before anything reaches the venue.
	result, err := exec.Execute(context.Background(), models.Buy,
		models.QuoteSize(d("100")), models.SingleExecution(), decisionAt)
	require.Error(t, err)
	assert.Equal(t, models.CodeDuplicateOrder, models.ErrorCode(err))
	assert.Empty(t, result.Chunks)
}

func TestSellAvgPriceIsQuotePerBase(t *testing.T) {
	exec, fake, _, clock := newExecutorFixture(t)
	fake.price = d("250")

	result, err := exec.Execute(context.Background(), models.Sell,
		models.BaseSize(d("4")), models.SplitExecution(2), clock.Now())

	require.NoError(t, err)
	assert.True(t, result.TotalInput.Equal(d("4")))
	assert.True(t, result.TotalOutput.Equal(d("1000")))
	assert.True(t, result.AvgPrice.Equal(d("250")))
}

// slowConfirmVenue wraps the scripted venue, burning fake-clock time inside
// confirmation so shared quotes expire between chunks.
type slowConfirmVenue struct {
	*scriptedVenue
	clock *fakeClock
	delay time.Duration
}

func (v *slowConfirmVenue) WaitForConfirmation(ctx context.Context, txID string) error {
	v.clock.Advance(v.delay)
	return nil
}
