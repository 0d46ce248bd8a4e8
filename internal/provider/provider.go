// Package provider defines the shortening-service capability and its errors.
package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Request is one shortening call.
type Request struct {
	LongURL string
	Tags    []string
	GroupID string
}

// Provider turns a long URL into a short one.
type Provider interface {
	Shorten(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to the Provider interface.
type Func func(ctx context.Context, req Request) (string, error)

// Shorten implements Provider.
func (f Func) Shorten(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Error is a logical failure reported by the shortening service
// (rate limit, invalid payload, bad token).
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error %d", e.StatusCode)
}

// NetworkError is a transport failure talking to the shortening service.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "provider transport: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Limited throttles calls to the wrapped provider with a token bucket.
type Limited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewLimited allows perSecond calls per second with the given burst.
// A non-positive perSecond disables throttling.
func NewLimited(next Provider, perSecond float64, burst int) *Limited {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Shorten implements Provider. It blocks until a token is available or ctx ends.
func (l *Limited) Shorten(ctx context.Context, req Request) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return l.next.Shorten(ctx, req)
}
