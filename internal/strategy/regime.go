package strategy

import (
	"sync"
	"time"

	"spot-trade-bot-go/internal/models"
	"spot-trade-bot-go/internal/numeric"

	"github.com/shopspring/decimal"
)

// Regime classifies recent market behavior.
type Regime string

const (
	RegimeTrendingUp   Regime = "TRENDING_UP"
	RegimeTrendingDown Regime = "TRENDING_DOWN"
	RegimeChop         Regime = "CHOP"
	RegimeVolatile     Regime = "VOLATILE"
)

// Classification is a regime plus a confidence signal in [0, 1].
type Classification struct {
	Regime     Regime
	Confidence float64
}

// Window accumulates price observations into rolling hourly buckets for the
// classifier. One Window per instance, fed once per decision cycle.
type Window struct {
	mu    sync.Mutex
	hours int
	stats []models.HourlyStats

	lastPrice decimal.Decimal
	lastDir   int // +1 rising, -1 falling, 0 unknown
}

// NewWindow creates a window holding up to `hours` hourly buckets.
func NewWindow(hours int) *Window {
	return &Window{hours: hours}
}

// Seed preloads historical hourly stats, keeping only the newest buckets that
// fit the window.
func (w *Window) Seed(stats []models.HourlyStats) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(stats) > w.hours {
		stats = stats[len(stats)-w.hours:]
	}
	w.stats = append([]models.HourlyStats(nil), stats...)
}

// Observe folds one price point into the current hour's bucket, opening a new
// bucket on hour boundaries and evicting the oldest when the window is full.
func (w *Window) Observe(now time.Time, price decimal.Decimal) {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := now.UTC().Truncate(time.Hour)
	n := len(w.stats)
	if n == 0 || !w.stats[n-1].Hour.Equal(hour) {
		w.stats = append(w.stats, models.HourlyStats{
			Hour: hour,
			Open: price, Close: price, High: price, Low: price,
		})
		if len(w.stats) > w.hours {
			w.stats = w.stats[1:]
		}
		n = len(w.stats)
	}

	bucket := &w.stats[n-1]
	bucket.Close = price
	if price.GreaterThan(bucket.High) {
		bucket.High = price
	}
	if price.LessThan(bucket.Low) {
		bucket.Low = price
	}
	bucket.TradeCount++

	if !w.lastPrice.IsZero() {
		dir := price.Cmp(w.lastPrice)
		if dir != 0 {
			if w.lastDir != 0 && dir != w.lastDir {
				bucket.Reversals++
			}
			w.lastDir = dir
		}
	}
	w.lastPrice = price
}

// Snapshot returns a copy of the current buckets.
func (w *Window) Snapshot() []models.HourlyStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.HourlyStats(nil), w.stats...)
}

// Classifier is a stateless threshold function over an analytics window.
type Classifier struct {
	trendBps         int64
	volatileRangeBps int64
	chopReversals    int
}

// NewClassifier builds the classifier from per-instance thresholds.
func NewClassifier(cfg *models.StrategyConfig) *Classifier {
	return &Classifier{
		trendBps:         cfg.RegimeTrendBps,
		volatileRangeBps: cfg.RegimeVolatileRangeBps,
		chopReversals:    cfg.RegimeChopReversals,
	}
}

// Classify maps the window onto a regime. Precedence: a wide range is
// VOLATILE regardless of drift; frequent reversals are CHOP; a sustained
// drift beyond the trend threshold is TRENDING; everything else is CHOP.
func (c *Classifier) Classify(stats []models.HourlyStats) Classification {
	if len(stats) == 0 {
		return Classification{Regime: RegimeChop, Confidence: 0}
	}

	open := stats[0].Open
	close := stats[len(stats)-1].Close
	high := stats[0].High
	low := stats[0].Low
	reversals := 0
	for _, s := range stats {
		if s.High.GreaterThan(high) {
			high = s.High
		}
		if s.Low.LessThan(low) {
			low = s.Low
		}
		reversals += s.Reversals
	}

	rangeBps := numeric.RangeBps(high, low)
	var driftBps int64
	if !open.IsZero() {
		driftBps = close.Sub(open).Div(open).Mul(decimal.NewFromInt(10000)).Round(0).IntPart()
	}

	switch {
	case rangeBps >= c.volatileRangeBps:
		return Classification{Regime: RegimeVolatile, Confidence: ratio(rangeBps, c.volatileRangeBps)}
	case reversals >= c.chopReversals:
		return Classification{Regime: RegimeChop, Confidence: ratio(int64(reversals), int64(c.chopReversals))}
	case driftBps >= c.trendBps:
		return Classification{Regime: RegimeTrendingUp, Confidence: ratio(driftBps, c.trendBps)}
	case -driftBps >= c.trendBps:
		return Classification{Regime: RegimeTrendingDown, Confidence: ratio(-driftBps, c.trendBps)}
	default:
		return Classification{Regime: RegimeChop, Confidence: 0.5}
	}
}

// ratio maps value/threshold into (0, 1], saturating at twice the threshold.
func ratio(value, threshold int64) float64 {
	if threshold <= 0 {
		return 1
	}
	r := float64(value) / float64(2*threshold)
	if r > 1 {
		return 1
	}
	return r
}
