package resilience

import "time"

// FromPolicyConfig converts config values to a RetryPolicy. Zero or empty
// values keep the DefaultRetryPolicy setting.
func FromPolicyConfig(maxAttempts, backoffMs int, statuses []int, methods []string) RetryPolicy {
	p := RetryPolicy{
		MaxAttempts:   maxAttempts,
		BackoffBase:   time.Duration(backoffMs) * time.Millisecond,
		RetryStatuses: statuses,
		RetryMethods:  methods,
	}
	return p.WithDefaults()
}
