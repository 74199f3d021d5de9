// Package fetch performs a single resilient fetch of one URL and reduces the
// response to normalized plain text.
package fetch

import (
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultTimeout is the per-attempt timeout used when none is configured.
const DefaultTimeout = 15 * time.Second

// Request describes one fetch of one URL. It is immutable once built by
// NewRequest; the getters return copies.
type Request struct {
	url       string
	headers   http.Header
	timeout   time.Duration
	verifyTLS bool
}

// RequestOption configures a Request.
type RequestOption func(*Request)

// WithHeader adds a header override applied on top of DefaultHeaders.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		r.headers.Set(key, value)
	}
}

// WithHeaders adds every header in h as an override.
func WithHeaders(h http.Header) RequestOption {
	return func(r *Request) {
		for k, vs := range h {
			r.headers.Del(k)
			for _, v := range vs {
				r.headers.Add(k, v)
			}
		}
	}
}

// WithTimeout sets the per-attempt timeout. Non-positive values keep
// DefaultTimeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(r *Request) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithVerifyTLS toggles TLS certificate verification (on by default).
func WithVerifyTLS(verify bool) RequestOption {
	return func(r *Request) {
		r.verifyTLS = verify
	}
}

// NewRequest validates rawURL and builds a Request. The URL must be an
// absolute http or https URL with a host.
func NewRequest(rawURL string, opts ...RequestOption) (Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Request{}, eris.Wrapf(err, "fetch: invalid url %q", rawURL)
	}
	if !u.IsAbs() || u.Host == "" {
		return Request{}, eris.Errorf("fetch: url must be absolute: %q", rawURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Request{}, eris.Errorf("fetch: unsupported scheme %q in %q", u.Scheme, rawURL)
	}

	r := Request{
		url:       rawURL,
		headers:   make(http.Header),
		timeout:   DefaultTimeout,
		verifyTLS: true,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r, nil
}

// URL returns the target URL exactly as given to NewRequest.
func (r Request) URL() string { return r.url }

// Headers returns a copy of the header overrides.
func (r Request) Headers() http.Header { return r.headers.Clone() }

// Timeout returns the per-attempt timeout.
func (r Request) Timeout() time.Duration { return r.timeout }

// VerifyTLS reports whether TLS certificates are verified.
func (r Request) VerifyTLS() bool { return r.verifyTLS }
