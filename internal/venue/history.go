package venue

import (
	"context"
	"time"

	"spot-trade-bot-go/internal/models"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// WarmupAnalytics downloads the last `hours` hourly candles so the regime
// classifier has a full window at startup instead of waiting hours for live
// observations to accumulate.
func (v *BinanceVenue) WarmupAnalytics(ctx context.Context, hours int) ([]models.HourlyStats, error) {
	klines, err := v.client.NewKlinesService().
		Symbol(v.symbol).
		Interval("1h").
		Limit(hours).
		Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return klinesToHourlyStats(klines)
}

func klinesToHourlyStats(klines []*binance.Kline) ([]models.HourlyStats, error) {
	stats := make([]models.HourlyStats, 0, len(klines))
	var prevUp bool
	var havePrev bool
	for _, k := range klines {
		open, err := decimal.NewFromString(k.Open)
		if err != nil {
			return nil, models.RPCError("malformed kline open", err)
		}
		close, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, models.RPCError("malformed kline close", err)
		}
		high, err := decimal.NewFromString(k.High)
		if err != nil {
			return nil, models.RPCError("malformed kline high", err)
		}
		low, err := decimal.NewFromString(k.Low)
		if err != nil {
			return nil, models.RPCError("malformed kline low", err)
		}

		s := models.HourlyStats{
			Hour:       time.UnixMilli(k.OpenTime).UTC().Truncate(time.Hour),
			Open:       open,
			Close:      close,
			High:       high,
			Low:        low,
			TradeCount: k.TradeNum,
		}
		// Candle-level direction flips approximate intra-window reversals.
		up := close.GreaterThanOrEqual(open)
		if havePrev && up != prevUp {
			s.Reversals = 1
		}
		prevUp, havePrev = up, true
		stats = append(stats, s)
	}
	return stats, nil
}
