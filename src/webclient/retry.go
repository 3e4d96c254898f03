package webclient

import (
	"context"
	"net/http"
	"time"
)

// Policy bounds DoWithRetry.
type Policy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultPolicy retries three times starting at 200ms.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, InitialDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}
}

type AttemptFunc func(ctx context.Context) (status int, body []byte, err error)

// Transient reports whether status is worth another attempt.
func Transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry retries fn on transport errors and transient statuses (429/5xx).
// The last attempt's result is returned as-is so callers can decode the error body.
func DoWithRetry(ctx context.Context, p Policy, fn AttemptFunc) (int, []byte, error) {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = 200 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}

	delay := p.InitialDelay
	var (
		status int
		body   []byte
		err    error
	)
	for i := 0; i < p.Attempts; i++ {
		status, body, err = fn(ctx)
		if err == nil && !Transient(status) {
			return status, body, nil
		}
		if ctx.Err() != nil {
			return status, body, ctx.Err()
		}
		if i == p.Attempts-1 {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return status, body, ctx.Err()
		case <-t.C:
		}
		if delay *= 2; delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return status, body, err
}
