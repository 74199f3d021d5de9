package resilience

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
)

// AttemptStats counts the round trips made for one logical request. When a
// request carries stats, every RoundTrip made with it (redirect hops
// included) draws from one MaxAttempts budget.
type AttemptStats struct {
	attempts  atomic.Int32
	retries   atomic.Int32
	redirects atomic.Int32
}

// Attempts returns the number of round trips started.
func (s *AttemptStats) Attempts() int { return int(s.attempts.Load()) }

// Retries returns the number of retries (attempts after a retriable failure).
func (s *AttemptStats) Retries() int { return int(s.retries.Load()) }

// Redirects returns the number of redirect hops followed.
func (s *AttemptStats) Redirects() int { return int(s.redirects.Load()) }

// Retried reports whether at least one retry happened.
func (s *AttemptStats) Retried() bool { return s.Retries() > 0 }

// Exhausted reports whether the stats have used up policy's attempt budget.
func (s *AttemptStats) Exhausted(policy RetryPolicy) bool {
	return s != nil && s.Attempts() >= policy.WithDefaults().MaxAttempts
}

func (s *AttemptStats) recordAttempt() {
	if s != nil {
		s.attempts.Add(1)
	}
}

func (s *AttemptStats) recordRetry() {
	if s != nil {
		s.retries.Add(1)
	}
}

func (s *AttemptStats) recordRedirect() {
	if s != nil {
		s.redirects.Add(1)
	}
}

type statsKey struct{}

type timeoutKey struct{}

// WithAttemptStats returns a context whose requests record their round trips
// in the returned AttemptStats when sent through a RetryTransport.
func WithAttemptStats(ctx context.Context) (context.Context, *AttemptStats) {
	stats := &AttemptStats{}
	return context.WithValue(ctx, statsKey{}, stats), stats
}

// WithAttemptTimeout overrides the RetryTransport per-attempt timeout for
// requests sent with the returned context.
func WithAttemptTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, timeoutKey{}, d)
}

func statsFrom(ctx context.Context) *AttemptStats {
	stats, _ := ctx.Value(statsKey{}).(*AttemptStats)
	return stats
}

// RetryTransport is an http.RoundTripper that retries failed round trips
// according to a RetryPolicy. Retriable statuses and transient transport
// errors are retried only for methods in the policy and only when the request
// body can be replayed. The final response is returned as-is, whatever its
// status; classifying it is up to the caller.
type RetryTransport struct {
	Base    http.RoundTripper
	Policy  RetryPolicy
	Timeout time.Duration // per attempt, including the body read; 0 disables
}

// NewRetryTransport wraps base (http.DefaultTransport when nil).
func NewRetryTransport(base http.RoundTripper, policy RetryPolicy, timeout time.Duration) *RetryTransport {
	return &RetryTransport{
		Base:    base,
		Policy:  policy.WithDefaults(),
		Timeout: timeout,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	stats := statsFrom(ctx)
	policy := t.Policy.WithDefaults()

	timeout := t.Timeout
	if d, ok := ctx.Value(timeoutKey{}).(time.Duration); ok && d > 0 {
		timeout = d
	}

	if stats.Exhausted(policy) {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, eris.Errorf("retry transport: attempt budget of %d exhausted", policy.MaxAttempts)
	}
	if req.Response != nil {
		stats.recordRedirect()
	}

	replayable := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
	retriable := replayable && policy.AllowsMethod(req.Method)

	for attempt := 1; ; attempt++ {
		stats.recordAttempt()
		used := attempt
		if stats != nil {
			used = stats.Attempts()
		}

		attemptReq, attemptCtx, cancel, err := prepareAttempt(req, attempt, timeout)
		if err != nil {
			return nil, err
		}

		resp, err := t.base().RoundTrip(attemptReq)
		final := !retriable || used >= policy.MaxAttempts

		switch {
		case err != nil:
			timedOut := attemptCtx.Err() != nil && ctx.Err() == nil
			cancel()
			if final || ctx.Err() != nil || !(timedOut || IsTransient(err)) {
				return nil, err
			}
		case !final && policy.RetriesStatus(resp.StatusCode):
			drain(resp.Body)
			cancel()
		default:
			resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
			return resp, nil
		}

		stats.recordRetry()
		retry := attempt
		if stats != nil {
			retry = stats.Retries()
		}
		if err := sleepCtx(ctx, policy.Backoff(retry)); err != nil {
			return nil, err
		}
	}
}

// CloseIdleConnections forwards to the base transport when it supports it.
func (t *RetryTransport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if ci, ok := t.base().(closeIdler); ok {
		ci.CloseIdleConnections()
	}
}

func (t *RetryTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func prepareAttempt(req *http.Request, attempt int, timeout time.Duration) (*http.Request, context.Context, context.CancelFunc, error) {
	ctx, cancel := req.Context(), context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	out := req.Clone(ctx)
	if attempt > 1 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, nil, nil, eris.Wrap(err, "retry transport: rewind body")
		}
		out.Body = body
	}
	return out, ctx, cancel, nil
}

// cancelOnClose releases the attempt context once the caller is done with
// the body, so the per-attempt timeout also bounds the body read.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
