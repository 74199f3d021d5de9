package resilience

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// RetryPolicy controls how RetryTransport retries HTTP round trips.
// Backoff is deterministic: no jitter is applied.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BackoffBase is the delay before the first retry. Each later retry
	// doubles it: BackoffBase * 2^(retry-1).
	BackoffBase time.Duration

	// RetryStatuses are the response codes that trigger a retry.
	RetryStatuses []int

	// RetryMethods are the (idempotent) methods eligible for retry.
	RetryMethods []string
}

// Upper bounds for a valid policy. Within them Backoff never reaches
// MaxBackoffDelay, so delays stay strictly increasing.
const (
	MaxAttemptsLimit = 10
	MaxBackoffBase   = time.Minute
	MaxBackoffDelay  = 24 * time.Hour
)

// DefaultRetryPolicy returns 3 attempts, 100ms base backoff, retries on
// 500/502/503/504 for HEAD, GET and OPTIONS.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BackoffBase: 100 * time.Millisecond,
		RetryStatuses: []int{
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
		RetryMethods: []string{http.MethodHead, http.MethodGet, http.MethodOptions},
	}
}

// WithDefaults returns a copy of p with invalid or empty fields replaced by
// the DefaultRetryPolicy values.
func (p RetryPolicy) WithDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	p.MaxAttempts = min(p.MaxAttempts, MaxAttemptsLimit)
	if p.BackoffBase <= 0 {
		p.BackoffBase = def.BackoffBase
	}
	p.BackoffBase = min(p.BackoffBase, MaxBackoffBase)
	if len(p.RetryStatuses) == 0 {
		p.RetryStatuses = def.RetryStatuses
	} else {
		p.RetryStatuses = slices.Clone(p.RetryStatuses)
	}
	if len(p.RetryMethods) == 0 {
		p.RetryMethods = def.RetryMethods
	} else {
		methods := make([]string, len(p.RetryMethods))
		for i, m := range p.RetryMethods {
			methods[i] = strings.ToUpper(m)
		}
		p.RetryMethods = methods
	}
	return p
}

// Validate reports a policy that WithDefaults would have to repair.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 || p.MaxAttempts > MaxAttemptsLimit {
		return eris.Errorf("retry policy: max attempts must be between 1 and %d, got %d", MaxAttemptsLimit, p.MaxAttempts)
	}
	if p.BackoffBase <= 0 || p.BackoffBase > MaxBackoffBase {
		return eris.Errorf("retry policy: backoff base must be positive and at most %s, got %s", MaxBackoffBase, p.BackoffBase)
	}
	for _, code := range p.RetryStatuses {
		if code < 100 || code > 599 {
			return eris.Errorf("retry policy: invalid status code %d", code)
		}
	}
	return nil
}

// Backoff returns the delay to sleep before the given retry (1-based),
// saturating at MaxBackoffDelay.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	if retry < 1 || p.BackoffBase <= 0 {
		return 0
	}
	d := p.BackoffBase
	for i := 1; i < retry; i++ {
		if d >= MaxBackoffDelay/2 {
			return MaxBackoffDelay
		}
		d *= 2
	}
	return min(d, MaxBackoffDelay)
}

// AllowsMethod reports whether requests with method may be retried.
func (p RetryPolicy) AllowsMethod(method string) bool {
	return slices.Contains(p.RetryMethods, strings.ToUpper(method))
}

// RetriesStatus reports whether a response with code should be retried.
func (p RetryPolicy) RetriesStatus(code int) bool {
	return slices.Contains(p.RetryStatuses, code)
}
