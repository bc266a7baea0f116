package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"
)

// backoff tracks retry attempts for one request.
type backoff struct {
	attempts int
	next     time.Duration
	max      time.Duration
}

func newBackoff(attempts int, base, limit time.Duration) *backoff {
	if attempts <= 0 {
		attempts = 1
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return &backoff{attempts: attempts, next: base, max: limit}
}

// wait sleeps before the next attempt. A positive hint (Retry-After) replaces
// the jittered exponential delay.
func (b *backoff) wait(ctx context.Context, hint time.Duration) error {
	d := hint
	if d <= 0 {
		d = withJitter(b.next)
		if b.max > 0 && d > b.max {
			d = b.max
		}
		b.next *= 2
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

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// parseRetryAfter interprets a Retry-After value as seconds or an HTTP date.
func parseRetryAfter(v string) (time.Duration, error) {
	if s, err := strconv.Atoi(v); err == nil {
		if s < 0 {
			s = 0
		}
		return time.Duration(s) * time.Second, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	if v := h.Get("Retry-After"); v != "" {
		if d, err := parseRetryAfter(v); err == nil {
			return d
		}
	}
	return 0
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(h http.Header) string {
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Groq-Request-Id", "X-Amzn-Requestid"} {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}
