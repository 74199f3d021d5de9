package fetch

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/advisor-scrape/internal/resilience"
)

// DefaultMaxBodyBytes bounds how much of a response body is read.
const DefaultMaxBodyBytes int64 = 2 << 20

const maxRedirects = 10

// Executor fetches a URL with transport-level retries and reduces the
// response to normalized text. It is safe for concurrent use; every Fetch
// builds its own session over shared connection pools.
type Executor struct {
	method       string
	policy       resilience.RetryPolicy
	maxBodyBytes int64

	secure   http.RoundTripper
	insecure http.RoundTripper
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMethod sets the HTTP method (GET by default).
func WithMethod(method string) ExecutorOption {
	return func(e *Executor) {
		if method != "" {
			e.method = method
		}
	}
}

// WithRetryPolicy sets the retry policy. Invalid fields fall back to the
// defaults.
func WithRetryPolicy(p resilience.RetryPolicy) ExecutorOption {
	return func(e *Executor) {
		e.policy = p.WithDefaults()
	}
}

// WithMaxBodyBytes bounds the number of body bytes read on success.
func WithMaxBodyBytes(n int64) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxBodyBytes = n
		}
	}
}

// WithBaseTransport replaces both pooled transports with rt. TLS
// verification is then rt's concern.
func WithBaseTransport(rt http.RoundTripper) ExecutorOption {
	return func(e *Executor) {
		if rt != nil {
			e.secure = rt
			e.insecure = rt
		}
	}
}

// NewExecutor creates an Executor with the default retry policy.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		method:       http.MethodGet,
		policy:       resilience.DefaultRetryPolicy(),
		maxBodyBytes: DefaultMaxBodyBytes,
		secure:       newPooledTransport(true),
		insecure:     newPooledTransport(false),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newPooledTransport(verifyTLS bool) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = 10
	if !verifyTLS {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in per request
	}
	return t
}

// Policy returns the effective retry policy.
func (e *Executor) Policy() resilience.RetryPolicy { return e.policy }

// CloseIdleConnections closes idle connections in both pools.
func (e *Executor) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	for _, rt := range []http.RoundTripper{e.secure, e.insecure} {
		if c, ok := rt.(closeIdler); ok {
			c.CloseIdleConnections()
		}
	}
}

// Fetch performs one logical fetch of req. It never returns an error and
// never panics: every problem becomes a Failure.
func (e *Executor) Fetch(ctx context.Context, req Request) Outcome {
	start := time.Now()
	ctx, stats := resilience.WithAttemptStats(ctx)

	httpReq, err := http.NewRequestWithContext(ctx, e.method, req.URL(), nil)
	if err != nil {
		return e.fail(req, stats, eris.Wrap(err, "build request"))
	}
	httpReq.Header = DefaultHeaders()
	for k, vs := range req.headers {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := e.session(req, stats).Do(httpReq)
	if err != nil {
		return e.fail(req, stats, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var statusErr error = eris.Errorf("unexpected status %d", resp.StatusCode)
		if e.policy.RetriesStatus(resp.StatusCode) {
			statusErr = resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return e.fail(req, stats, statusErr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodyBytes))
	if err != nil {
		return e.fail(req, stats, eris.Wrap(err, "read body"))
	}

	content := ExtractText(body, resp.Header.Get("Content-Type"))
	fields := []zap.Field{
		zap.String("url", req.URL()),
		zap.Int("status", resp.StatusCode),
		zap.Int("attempts", attemptsOf(stats)),
		zap.Int("redirects", stats.Redirects()),
		zap.Int("content_len", len(content)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if blocked, kind := DetectBlock(resp, body); blocked {
		fields = append(fields, zap.String("block_type", string(kind)))
	}
	zap.L().Info("fetch: succeeded", fields...)

	return Success{
		Content:    content,
		StatusCode: resp.StatusCode,
		Attempts:   attemptsOf(stats),
	}
}

// session builds the per-call client. The RetryTransport is fresh for every
// call; the pooled transport below it is shared. Redirect hops spend the
// same attempt budget as retries.
func (e *Executor) session(req Request, stats *resilience.AttemptStats) *http.Client {
	base := e.secure
	if !req.VerifyTLS() {
		base = e.insecure
	}
	return &http.Client{
		Transport: resilience.NewRetryTransport(base, e.policy, req.Timeout()),
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return eris.Errorf("stopped after %d redirects", maxRedirects)
			}
			if stats.Exhausted(e.policy) {
				return eris.Errorf("attempt budget of %d exhausted after %d redirects", e.policy.MaxAttempts, len(via))
			}
			return nil
		},
	}
}

func (e *Executor) fail(req Request, stats *resilience.AttemptStats, err error) Failure {
	f := Failure{
		Reason:   fmt.Sprintf("fetch %s: %v", req.URL(), err),
		Retried:  stats.Retried(),
		Attempts: attemptsOf(stats),
		Err:      err,
	}
	zap.L().Warn("fetch: failed",
		zap.String("url", req.URL()),
		zap.Int("attempts", f.Attempts),
		zap.Bool("retried", f.Retried),
		zap.String("error_class", string(resilience.ClassifyError(err))),
		zap.Error(err),
	)
	return f
}

func attemptsOf(stats *resilience.AttemptStats) int {
	if n := stats.Attempts(); n > 0 {
		return n
	}
	return 1
}
