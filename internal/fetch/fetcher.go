// Package fetch retrieves JSON documents from the registry with retries.
//
// A Fetcher retries transient failures (network errors, 429 and 5xx) with a
// doubling backoff plus uniform jitter, and gives up immediately on any other
// non-200 status or on a 200 whose body is not JSON. Every failure is
// returned as an error value; callers in this module treat any error as
// "the resource is absent" and carry on.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/nao1215/bankrotscan/internal/log"
	"github.com/nao1215/bankrotscan/internal/node"
)

const (
	// DefaultMaxAttempts is the total number of tries per URL.
	DefaultMaxAttempts = 4

	// DefaultBaseBackoff is the wait after the first retryable failure.
	// It doubles after each further failure.
	DefaultBaseBackoff = 700 * time.Millisecond

	// DefaultMaxJitter bounds the uniform random delay added to each wait.
	DefaultMaxJitter = 250 * time.Millisecond
)

var (
	// ErrMalformedJSON is returned for a 200 response that is not JSON.
	ErrMalformedJSON = errors.New("response is not valid JSON")

	// ErrAttemptsExhausted is returned when every attempt hit a retryable
	// failure. It wraps the last failure.
	ErrAttemptsExhausted = errors.New("retry attempts exhausted")
)

// StatusError reports a non-retryable HTTP status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
}

// Transport performs one GET. A non-nil error means no response was
// received; HTTP error statuses are reported through the status code.
type Transport interface {
	Get(ctx context.Context, url string, header http.Header) (int, []byte, error)
}

// Fetcher issues GET requests with retry and backoff.
type Fetcher struct {
	transport   Transport
	maxAttempts int
	baseBackoff time.Duration
	maxJitter   time.Duration
	jitter      func(max time.Duration) time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithMaxAttempts sets the total number of tries. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(f *Fetcher) {
		if n >= 1 {
			f.maxAttempts = n
		}
	}
}

// WithBackoff sets the base backoff and the jitter bound.
func WithBackoff(base, maxJitter time.Duration) Option {
	return func(f *Fetcher) {
		if base >= 0 {
			f.baseBackoff = base
		}
		if maxJitter >= 0 {
			f.maxJitter = maxJitter
		}
	}
}

// WithSleep replaces the wait function. Tests use it to record delays
// instead of sleeping.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// WithJitter replaces the jitter source.
func WithJitter(jitter func(max time.Duration) time.Duration) Option {
	return func(f *Fetcher) {
		if jitter != nil {
			f.jitter = jitter
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates a Fetcher on top of the given transport.
func New(transport Transport, opts ...Option) *Fetcher {
	f := &Fetcher{
		transport:   transport,
		maxAttempts: DefaultMaxAttempts,
		baseBackoff: DefaultBaseBackoff,
		maxJitter:   DefaultMaxJitter,
		jitter:      uniformJitter,
		sleep:       sleepContext,
		logger:      log.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// JSON fetches url and decodes the body. The referer is sent with the
// request; the registry's frontend always sets it.
func (f *Fetcher) JSON(ctx context.Context, url, referer string) (node.Node, error) {
	header := http.Header{}
	if referer != "" {
		header.Set("Referer", referer)
	}

	backoff := f.baseBackoff
	var lastErr error

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return node.Node{}, err
		}

		status, body, err := f.transport.Get(ctx, url, header)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return node.Node{}, ctx.Err()
			}
			lastErr = err
		case status == http.StatusOK:
			doc, derr := node.Decode(body)
			if derr != nil {
				return node.Node{}, fmt.Errorf("GET %s: %w: %w", url, ErrMalformedJSON, derr)
			}
			return doc, nil
		case isRetryable(status):
			lastErr = &StatusError{URL: url, Status: status}
		default:
			return node.Node{}, &StatusError{URL: url, Status: status}
		}

		if attempt == f.maxAttempts {
			break
		}

		wait := backoff + f.jitter(f.maxJitter)
		f.logger.Debug("retrying request",
			"url", url,
			"attempt", attempt,
			"wait", wait.Round(time.Millisecond),
			"error", lastErr)
		if err := f.sleep(ctx, wait); err != nil {
			return node.Node{}, err
		}
		backoff *= 2
	}

	return node.Node{}, fmt.Errorf("GET %s: %w after %d attempts: %w", url, ErrAttemptsExhausted, f.maxAttempts, lastErr)
}

func isRetryable(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

func uniformJitter(maxJitter time.Duration) time.Duration {
	if maxJitter <= 0 {
		return 0
	}
	return rand.N(maxJitter) //nolint:gosec // jitter does not need a secure source
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
