package artifact

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// Backoff retries an operation with jittered exponential delays.
type Backoff struct {
	// Attempts bounds the calls, including the first (default 3).
	Attempts int

	// Base is the first delay; each retry doubles it up to Max.
	Base time.Duration
	Max  time.Duration

	// Jitter spreads each delay by ±Jitter of its length (default 0.2).
	Jitter float64

	// Retryable decides whether a failure is worth another attempt. Nil
	// means no failure is.
	Retryable func(err error) bool

	// OnRetry is called before each wait with the attempt that failed.
	OnRetry func(attempt int, err error, delay time.Duration)

	sleep func(ctx context.Context, d time.Duration) error
}

// Do calls op until it succeeds, fails with an error Retryable rejects, or
// the attempts run out, and returns op's last error. Waiting stops early
// when ctx is done.
func (b Backoff) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 3
	}
	jitter := b.Jitter
	if jitter <= 0 {
		jitter = 0.2
	}
	sleep := b.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	delay := max(b.Base, 0)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op(ctx)
		if err == nil || attempt == attempts || b.Retryable == nil || !b.Retryable(err) {
			return err
		}

		wait := spread(delay, jitter)
		if b.OnRetry != nil {
			b.OnRetry(attempt, err, wait)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return fmt.Errorf("%w (retry abandoned: %v)", err, serr)
		}
		delay = min(2*delay, max(b.Max, b.Base))
	}
}

// ShouldRetryHTTPStatus reports whether a response status is transient.
func ShouldRetryHTTPStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// spread returns d moved by a random amount within ±frac of d.
func spread(d time.Duration, frac float64) time.Duration {
	window := int64(float64(d) * frac)
	if d <= 0 || window <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(2*window+1)-window)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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
