package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

var ErrRetriesExhausted = errors.New("provider retries exhausted")

// RetryPolicy retries retryable outcomes with a linear delay:
// BaseDelay after the first failure, 2*BaseDelay after the second, and so on.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	Sleep     func(ctx context.Context, d time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Second}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.BaseDelay
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry runs fn until it succeeds, fails fatally, or runs out of attempts.
// Running out is reported as ErrRetriesExhausted wrapping the last error.
func Retry[T any](ctx context.Context, p RetryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	var zero T
	for attempt := 1; ; attempt++ {
		out, err := fn(ctx)
		switch OutcomeOf(err) {
		case OutcomeOK:
			return out, nil
		case OutcomeFatal:
			return zero, err
		}
		if attempt >= attempts {
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}
		d := p.delay(attempt)
		logutil.GetLogger(ctx).Warn("provider call retrying",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Duration("delay", d), zap.Error(err))
		if err := p.sleep(ctx, d); err != nil {
			return zero, err
		}
	}
}

// RetryingLLM applies a RetryPolicy to every Generate call.
type RetryingLLM struct {
	next   LLMProvider
	policy RetryPolicy
}

func NewRetryingLLM(next LLMProvider, policy RetryPolicy) *RetryingLLM {
	return &RetryingLLM{next: next, policy: policy}
}

func (r *RetryingLLM) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	type result struct {
		resp GenerateResponse
		info ProviderInfo
	}
	var last ProviderInfo
	out, err := Retry(ctx, r.policy, req.Operation, func(ctx context.Context) (result, error) {
		resp, info, err := r.next.Generate(ctx, req)
		last = info
		return result{resp: resp, info: info}, err
	})
	if err != nil {
		return GenerateResponse{}, last, err
	}
	return out.resp, out.info, nil
}
