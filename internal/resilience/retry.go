package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Op describes a retried operation that is not an HTTP round trip, such as
// opening the database pool. Only the attempt count and backoff base of
// Policy apply.
type Op struct {
	// Name identifies the operation in retry logs.
	Name string

	Policy RetryPolicy

	// MaxBackoff caps a single sleep. Zero means uncapped.
	MaxBackoff time.Duration

	// Retryable overrides IsTransient when set.
	Retryable func(err error) bool
}

// ConnectOp returns the Op used when dialing a backing service: attempts
// tries starting at a 500ms backoff capped at 5s.
func ConnectOp(name string, attempts int) Op {
	return Op{
		Name:       name,
		Policy:     RetryPolicy{MaxAttempts: attempts, BackoffBase: 500 * time.Millisecond}.WithDefaults(),
		MaxBackoff: 5 * time.Second,
	}
}

func (o Op) delay(retry int) time.Duration {
	d := o.Policy.Backoff(retry)
	if o.MaxBackoff > 0 && d > o.MaxBackoff {
		return o.MaxBackoff
	}
	return d
}

// DoVal calls fn until it succeeds, returns a non-retryable error, or the
// op's attempts run out. The last error is returned on failure. Context
// cancellation stops retries immediately.
func DoVal[T any](ctx context.Context, op Op, fn func(ctx context.Context) (T, error)) (T, error) {
	op.Policy = op.Policy.WithDefaults()
	retryable := op.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	var err error
	for attempt := 1; ; attempt++ {
		var val T
		val, err = fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || !retryable(err) || attempt >= op.Policy.MaxAttempts {
			return zero, err
		}

		wait := op.delay(attempt)
		zap.L().Warn("resilience: retrying operation",
			zap.String("op", op.Name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if sleepCtx(ctx, wait) != nil {
			return zero, err
		}
	}
}
