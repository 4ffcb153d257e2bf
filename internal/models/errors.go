package models

import (
	"errors"
	"fmt"
)

// Stable error codes. User-visible failures always carry one of these plus a
// retryable flag; raw errors never cross a component boundary.
const (
	CodeQuote               = "QUOTE_ERROR"
	CodeRPC                 = "RPC_ERROR"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeSlippageExceeded    = "SLIPPAGE_EXCEEDED"
	CodePriceImpact         = "PRICE_IMPACT"
	CodePriceDeviation      = "PRICE_DEVIATION"
	CodeCircuitBreaker      = "CIRCUIT_BREAKER"
	CodeConfiguration       = "CONFIGURATION"
	CodeDuplicateOrder      = "DUPLICATE_ORDER"
)

// TradeError is the error type crossing component boundaries.
type TradeError struct {
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
	Message   string `json:"message"`
	Cause     error  `json:"-"`
}

func (e *TradeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TradeError) Unwrap() error { return e.Cause }

// Is matches on code so sentinels created with the same constructor compare
// equal under errors.Is.
func (e *TradeError) Is(target error) bool {
	var te *TradeError
	if !errors.As(target, &te) {
		return false
	}
	return te.Code == e.Code
}

func newTradeError(code string, retryable bool, msg string, cause error) *TradeError {
	return &TradeError{Code: code, Retryable: retryable, Message: msg, Cause: cause}
}

// QuoteError: quote fetch failed, retryable.
func QuoteError(msg string, cause error) *TradeError {
	return newTradeError(CodeQuote, true, msg, cause)
}

// RPCError: transient venue/transport failure, retryable.
func RPCError(msg string, cause error) *TradeError {
	return newTradeError(CodeRPC, true, msg, cause)
}

// InsufficientBalanceError: fatal, never retried.
func InsufficientBalanceError(msg string) *TradeError {
	return newTradeError(CodeInsufficientBalance, false, msg, nil)
}

// SlippageExceededError: retryable at the pipeline level (may re-quote).
func SlippageExceededError(msg string) *TradeError {
	return newTradeError(CodeSlippageExceeded, true, msg, nil)
}

// PriceImpactError: fatal for the current cycle.
func PriceImpactError(msg string) *TradeError {
	return newTradeError(CodePriceImpact, false, msg, nil)
}

// PriceDeviationError: implies stale data, retryable.
func PriceDeviationError(msg string) *TradeError {
	return newTradeError(CodePriceDeviation, true, msg, nil)
}

// CircuitBreakerError: fatal until external reset.
func CircuitBreakerError(msg string) *TradeError {
	return newTradeError(CodeCircuitBreaker, false, msg, nil)
}

// ConfigurationError: fatal, surfaced immediately.
func ConfigurationError(msg string) *TradeError {
	return newTradeError(CodeConfiguration, false, msg, nil)
}

// DuplicateOrderError: fatal; indicates a coordination bug and must never be
// silently retried.
func DuplicateOrderError(clientOrderID string) *TradeError {
	return newTradeError(CodeDuplicateOrder, false, fmt.Sprintf("duplicate client order id %s", clientOrderID), nil)
}

// IsRetryable reports whether err carries a retryable TradeError. Unknown
// errors are treated as non-retryable.
func IsRetryable(err error) bool {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// ErrorCode extracts the stable code, or "" for non-TradeErrors.
func ErrorCode(err error) string {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}
