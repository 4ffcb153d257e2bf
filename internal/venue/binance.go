package venue

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"spot-trade-bot-go/internal/logger"
	"spot-trade-bot-go/internal/models"
	"spot-trade-bot-go/internal/numeric"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"
)

// BinanceVenue executes spot market swaps through the Binance REST API.
type BinanceVenue struct {
	client     *binance.Client
	clock      Clock
	symbol     string
	baseAsset  string
	quoteAsset string
	quoteTTL   time.Duration

	confirmPoll RetryPolicy
}

// NewBinanceVenue builds the live venue for a single symbol.
func NewBinanceVenue(apiKey, secretKey string, venueCfg models.VenueConfig, inst *models.StrategyConfig, clock Clock) *BinanceVenue {
	binance.UseTestnet = venueCfg.IsTestnet
	return &BinanceVenue{
		client:     binance.NewClient(apiKey, secretKey),
		clock:      clock,
		symbol:     inst.Symbol,
		baseAsset:  inst.BaseAsset,
		quoteAsset: inst.QuoteAsset,
		quoteTTL:   time.Duration(venueCfg.QuoteTTLSeconds) * time.Second,
		confirmPoll: RetryPolicy{
			MaxAttempts:  inst.ConfirmPollAttempts,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   1.5,
		},
	}
}

func (v *BinanceVenue) GetBalances(ctx context.Context) (*models.Balances, error) {
	account, err := v.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := &models.Balances{}
	for _, b := range account.Balances {
		free, perr := decimal.NewFromString(b.Free)
		if perr != nil {
			continue
		}
		switch b.Asset {
		case v.baseAsset:
			out.Base = free
		case v.quoteAsset:
			out.Quote = free
		case "BNB":
			out.NativeForGas = free
		}
	}
	return out, nil
}

func (v *BinanceVenue) GetQuote(ctx context.Context, req QuoteRequest) (*models.Quote, error) {
	tickers, err := v.client.NewListBookTickersService().Symbol(v.symbol).Do(ctx)
	if err != nil {
		return nil, models.QuoteError("book ticker fetch failed", classify(err))
	}
	if len(tickers) == 0 {
		return nil, models.QuoteError("no book ticker for "+v.symbol, nil)
	}
	bid, err := decimal.NewFromString(tickers[0].BidPrice)
	if err != nil {
		return nil, models.QuoteError("malformed bid price", err)
	}
	ask, err := decimal.NewFromString(tickers[0].AskPrice)
	if err != nil {
		return nil, models.QuoteError("malformed ask price", err)
	}
	if bid.IsZero() || ask.IsZero() {
		return nil, models.QuoteError("empty book for "+v.symbol, nil)
	}

	price := ask
	if req.Side == models.Sell {
		price = bid
	}
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))

	now := v.clock.Now()
	q := &models.Quote{
		Side:           req.Side,
		Price:          price,
		PriceImpactBps: numeric.DeviationBps(price, mid),
		AmountIsBase:   req.AmountIsBase,
		IssuedAt:       now,
		ExpiresAt:      now.Add(v.quoteTTL),
	}
	switch {
	case req.Side == models.Buy && req.AmountIsBase:
		q.InputAmount = req.Amount.Mul(price)
		q.OutputAmount = req.Amount
	case req.Side == models.Buy:
		q.InputAmount = req.Amount
		q.OutputAmount = req.Amount.Div(price)
	case req.AmountIsBase:
		q.InputAmount = req.Amount
		q.OutputAmount = req.Amount.Mul(price)
	default:
		q.InputAmount = req.Amount.Div(price)
		q.OutputAmount = req.Amount
	}
	return q, nil
}

func (v *BinanceVenue) ExecuteSwap(ctx context.Context, quote *models.Quote, clientOrderID string) (*models.SwapResult, error) {
	if quote.Expired(v.clock.Now()) {
		return nil, models.QuoteError("quote expired before execution", nil)
	}

	svc := v.client.NewCreateOrderService().
		Symbol(v.symbol).
		Type(binance.OrderTypeMarket).
		NewClientOrderID(clientOrderID)

	if quote.Side == models.Buy {
		// BUY spends quote currency; let the venue compute the base fill.
		svc = svc.Side(binance.SideTypeBuy).QuoteOrderQty(quote.InputAmount.String())
	} else {
		svc = svc.Side(binance.SideTypeSell).Quantity(quote.InputAmount.String())
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, classify(err)
	}

	executedBase, err := decimal.NewFromString(res.ExecutedQuantity)
	if err != nil {
		return nil, models.RPCError("malformed executed quantity", err)
	}
	executedQuote, err := decimal.NewFromString(res.CummulativeQuoteQuantity)
	if err != nil {
		return nil, models.RPCError("malformed cumulative quote quantity", err)
	}
	if executedBase.IsZero() {
		return nil, models.RPCError("order accepted but nothing executed", nil)
	}
	execPrice := executedQuote.Div(executedBase)

	fees := decimal.Zero
	for _, f := range res.Fills {
		commission, perr := decimal.NewFromString(f.Commission)
		if perr != nil {
			continue
		}
		// Normalize commissions to quote units.
		if f.CommissionAsset == v.baseAsset {
			commission = commission.Mul(execPrice)
		} else if f.CommissionAsset != v.quoteAsset {
			logger.S().Warnw("commission in unexpected asset, skipped",
				"asset", f.CommissionAsset, "clientOrderId", clientOrderID)
			continue
		}
		fees = fees.Add(commission)
	}

	in, out := executedQuote, executedBase
	if quote.Side == models.Sell {
		in, out = executedBase, executedQuote
	}
	return &models.SwapResult{
		Success:           true,
		TxID:              strconv.FormatInt(res.OrderID, 10),
		ExecutedPrice:     execPrice,
		InputAmount:       in,
		OutputAmount:      out,
		ActualSlippageBps: numeric.DeviationBps(execPrice, quote.Price),
		Fees:              fees,
	}, nil
}

// WaitForConfirmation polls the order until it reaches a terminal status.
// Exhausting the poll budget surfaces as a timeout, not a success.
func (v *BinanceVenue) WaitForConfirmation(ctx context.Context, txID string) error {
	orderID, err := strconv.ParseInt(txID, 10, 64)
	if err != nil {
		return models.ConfigurationError("malformed venue order id " + txID)
	}

	state := newRetryState(v.confirmPoll)
	for {
		order, err := v.client.NewGetOrderService().
			Symbol(v.symbol).
			OrderID(orderID).
			Do(ctx)
		if err == nil {
			switch order.Status {
			case binance.OrderStatusTypeFilled:
				return nil
			case binance.OrderStatusTypeCanceled,
				binance.OrderStatusTypeRejected,
				binance.OrderStatusTypeExpired:
				return &models.TradeError{
					Code:    models.CodeRPC,
					Message: "order " + txID + " ended " + string(order.Status),
				}
			}
		} else if !models.IsRetryable(classify(err)) {
			return classify(err)
		}

		delay, ok := state.next()
		if !ok {
			return models.RPCError("confirmation timeout for order "+txID, nil)
		}
		if sleepErr := v.clock.Sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}

func (v *BinanceVenue) CheckConnectivity(ctx context.Context) (*models.Connectivity, error) {
	start := v.clock.Now()
	if err := v.client.NewPingService().Do(ctx); err != nil {
		return &models.Connectivity{Connected: false}, classify(err)
	}
	return &models.Connectivity{
		Connected: true,
		LatencyMs: v.clock.Now().Sub(start).Milliseconds(),
	}, nil
}

// classify maps transport and API errors into the trade error taxonomy.
func classify(err error) error {
	var apiErr *common.APIError
	if !errors.As(err, &apiErr) {
		// Transport-level failure: worth retrying.
		return models.RPCError("venue request failed", err)
	}

	msg := strings.ToLower(apiErr.Message)
	switch {
	case strings.Contains(msg, "duplicate"):
		return models.DuplicateOrderError(apiErr.Message)
	case apiErr.Code == -2010 && strings.Contains(msg, "insufficient"):
		return models.InsufficientBalanceError(apiErr.Message)
	case apiErr.Code == -1003: // rate limited
		return models.RPCError(apiErr.Message, err)
	case apiErr.Code == -1021 || apiErr.Code == -1001 || apiErr.Code == -1000:
		return models.RPCError(apiErr.Message, err)
	default:
		// Venue rejected the request outright; retrying would repeat it.
		return &models.TradeError{Code: models.CodeRPC, Message: apiErr.Message, Cause: err}
	}
}
