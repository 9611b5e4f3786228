package docstore

import (
	"context"
	"log"
	"time"

	"github.com/wastore/wastore/waerr"
)

const (
	// DefaultMaxRetries is the default attempt budget per operation.
	DefaultMaxRetries = 10
	// DefaultRetryDelay is the default fixed delay between attempts.
	DefaultRetryDelay = 200 * time.Millisecond
)

// Gateway wraps a Store with bounded retry: up to maxRetries attempts with a
// fixed delay in between and no backoff growth. Every attempt re-validates the
// connection first, so a dropped connection recovers on the next attempt. On
// exhaustion the last cause is surfaced as a ConnectionError annotated with
// the operation name and attempt count.
type Gateway struct {
	store      Store
	maxRetries int
	delay      time.Duration
	logger     *log.Logger
}

// NewGateway builds a gateway over store. maxRetries and delay fall back to
// the package defaults when non-positive. logger may be nil.
func NewGateway(store Store, maxRetries int, delay time.Duration, logger *log.Logger) *Gateway {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &Gateway{store: store, maxRetries: maxRetries, delay: delay, logger: logger}
}

// Store returns the wrapped store, for lifecycle calls that must not retry.
func (g *Gateway) Store() Store { return g.store }

func (g *Gateway) logf(format string, args ...any) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}

// do runs fn with the retry policy. Connection setup is not retried within an
// attempt; a connect failure simply consumes the attempt and the next
// iteration reconnects. The loop runs to completion; cancellation is the
// caller's concern (ctx is only passed through to the store).
func (g *Gateway) do(ctx context.Context, op string, fn func(context.Context) error) error {
	var last error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		if attempt > 1 {
			time.Sleep(g.delay)
		}
		if err := g.store.Connect(ctx); err != nil {
			last = err
			g.logf("docstore: %s: connect failed on attempt %d/%d: %v", op, attempt, g.maxRetries, err)
			continue
		}
		if err := fn(ctx); err != nil {
			last = err
			g.logf("docstore: %s: attempt %d/%d failed: %v", op, attempt, g.maxRetries, err)
			continue
		}
		return nil
	}
	return &waerr.ConnectionError{Op: op, Attempts: g.maxRetries, Cause: last}
}

// Read fetches the record for key, retrying on failure. Absent keys are
// (nil, nil); absence is not a failure and consumes no retries.
func (g *Gateway) Read(ctx context.Context, key string) (*Record, error) {
	var rec *Record
	err := g.do(ctx, "read", func(ctx context.Context) error {
		var err error
		rec, err = g.store.Read(ctx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Write upserts value under key, retrying on failure.
func (g *Gateway) Write(ctx context.Context, key, session string, value []byte) error {
	return g.do(ctx, "write", func(ctx context.Context) error {
		return g.store.Write(ctx, key, session, value)
	})
}

// Delete removes key, retrying on failure.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	return g.do(ctx, "delete", func(ctx context.Context) error {
		return g.store.Delete(ctx, key)
	})
}

// DeleteNamespace sweeps the session namespace, keeping excludeKeys.
func (g *Gateway) DeleteNamespace(ctx context.Context, session string, excludeKeys []string) error {
	return g.do(ctx, "deleteNamespace", func(ctx context.Context) error {
		return g.store.DeleteNamespace(ctx, session, excludeKeys)
	})
}

// DeleteAllNamespace removes every record of the session namespace.
func (g *Gateway) DeleteAllNamespace(ctx context.Context, session string) error {
	return g.do(ctx, "deleteAllNamespace", func(ctx context.Context) error {
		return g.store.DeleteAllNamespace(ctx, session)
	})
}
