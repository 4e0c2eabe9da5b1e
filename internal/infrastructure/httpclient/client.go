// Package httpclient builds the retrying HTTP client shared by the feed and
// media adapters.
package httpclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

type leveledSlog struct {
	inner *slog.Logger
}

// retries are expected, so intermediate errors are only warnings
func (l leveledSlog) Error(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...any) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...any) {
	l.inner.Debug(msg, keysAndValues...)
}

// Options tunes New. Zero durations fall back to defaults; MaxRetries is
// used as given, and a negative value keeps the default of 3.
type Options struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Logger       *slog.Logger
	Transport    http.RoundTripper
}

// New returns a stdlib *http.Client that retries connection errors and 5xx
// responses (except 501). 429 is never retried.
func New(opts Options) *http.Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Transport = cleanhttp.DefaultPooledTransport()
	if opts.Transport != nil {
		retryClient.HTTPClient.Transport = opts.Transport
	}
	retryClient.RetryMax = 3
	if opts.MaxRetries >= 0 {
		retryClient.RetryMax = opts.MaxRetries
	}
	retryClient.RetryWaitMin = 1 * time.Second
	if opts.RetryWaitMin > 0 {
		retryClient.RetryWaitMin = opts.RetryWaitMin
	}
	retryClient.RetryWaitMax = 10 * time.Second
	if opts.RetryWaitMax > 0 {
		retryClient.RetryWaitMax = opts.RetryWaitMax
	}
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{inner: logger.With("subsystem", "httpclient")})
	retryClient.CheckRetry = RetryPolicy
	// hand the last response back instead of a "giving up" error so callers
	// can classify the status themselves
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	client := retryClient.StandardClient()
	client.Timeout = 30 * time.Second
	if opts.Timeout > 0 {
		client.Timeout = opts.Timeout
	}
	return client
}

// RetryPolicy wraps retryablehttp.DefaultRetryPolicy and refuses to retry
// 429 Too Many Requests; the feed contract has no rate-limit backoff.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}
