package venue

import (
	"context"
	"time"

	"spot-trade-bot-go/internal/models"
)

// RetryPolicy bounds retry behavior for venue calls. Only errors marked
// retryable in the error taxonomy are retried; everything else fails fast.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// PolicyFromConfig builds the per-instance retry policy.
func PolicyFromConfig(cfg *models.StrategyConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  cfg.RetryAttempts,
		InitialDelay: time.Duration(cfg.RetryInitialDelayMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond,
		Multiplier:   2,
	}
}

// retryState tracks backoff progression across attempts. It is an explicit
// state machine rather than a recursive helper so the delay sequence is
// inspectable and capped.
type retryState struct {
	policy  RetryPolicy
	attempt int
	delay   time.Duration
}

func newRetryState(p RetryPolicy) *retryState {
	if p.Multiplier <= 1 {
		p.Multiplier = 2
	}
	return &retryState{policy: p, delay: p.InitialDelay}
}

// next returns the delay to wait before the next attempt, or false when the
// attempt budget is exhausted.
func (s *retryState) next() (time.Duration, bool) {
	s.attempt++
	if s.attempt >= s.policy.MaxAttempts {
		return 0, false
	}
	d := s.delay
	s.delay = time.Duration(float64(s.delay) * s.policy.Multiplier)
	if s.policy.MaxDelay > 0 && s.delay > s.policy.MaxDelay {
		s.delay = s.policy.MaxDelay
	}
	return d, true
}

// Retry runs op, retrying retryable failures with exponential backoff until
// the policy's attempt budget runs out. The last error is returned when all
// attempts fail; fatal errors and context cancellation return immediately.
func Retry(ctx context.Context, clock Clock, policy RetryPolicy, op func(ctx context.Context) error) error {
	state := newRetryState(policy)
	for {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !models.IsRetryable(err) {
			return err
		}
		delay, ok := state.next()
		if !ok {
			return err
		}
		if sleepErr := clock.Sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
	}
}
