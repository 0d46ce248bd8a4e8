package shortener

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"time"

	"github.com/leonardomso/shortener/internal/metrics"
	"github.com/leonardomso/shortener/internal/provider"
)

// maxBackoff caps the delay between provider attempts.
const maxBackoff = 30 * time.Second

// outcome is the result of the bounded retry loop: either a short link
// or the original link left unshortened.
type outcome struct {
	link      string
	shortened bool
	attempts  int
	lastErr   error
}

func shortened(link string, attempts int) outcome {
	return outcome{link: link, shortened: true, attempts: attempts}
}

func unshortened(original string, attempts int, lastErr error) outcome {
	return outcome{link: original, attempts: attempts, lastErr: lastErr}
}

// shortenWithRetry calls the provider up to maxRetries+1 times.
// Provider and transport failures are absorbed into an unshortened outcome;
// only cancellation of ctx is returned as an error.
func (s *Shortener) shortenWithRetry(
	ctx context.Context,
	p provider.Provider,
	req provider.Request,
	maxRetries int,
	backoff time.Duration,
) (outcome, error) {
	for attempt := 1; ; attempt++ {
		short, err := p.Shorten(ctx, req)
		if err == nil && short != "" {
			metrics.ProviderCalls.WithLabelValues("success").Inc()
			return shortened(short, attempt), nil
		}
		if err == nil {
			err = &provider.Error{Message: "empty short link"}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return outcome{}, ctxErr
		}

		metrics.ProviderCalls.WithLabelValues(failureLabel(err)).Inc()

		// attempt counts failures so far; maxRetries extra tries are allowed.
		if attempt > maxRetries {
			metrics.ProviderCalls.WithLabelValues("exhausted").Inc()
			s.logger.Warn().
				Err(err).
				Str("long_link", req.LongURL).
				Int("attempts", attempt).
				Msg("giving up on shortening, keeping original link")
			return unshortened(req.LongURL, attempt, err), nil
		}

		s.logger.Debug().
			Err(err).
			Str("long_link", req.LongURL).
			Int("attempt", attempt).
			Int("max_retries", maxRetries).
			Msg("shortening failed, retrying")

		if backoff > 0 {
			if err := sleep(ctx, backoffDelay(backoff, attempt)); err != nil {
				return outcome{}, err
			}
		}
	}
}

// failureLabel classifies a provider failure for metrics.
func failureLabel(err error) string {
	var netErr *provider.NetworkError
	if errors.As(err, &netErr) {
		return "network_error"
	}
	return "provider_error"
}

// backoffDelay calculates exponential backoff with jitter.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		attempt = 16
	}
	delay := base * time.Duration(1<<uint(attempt-1)) //nolint:gosec // attempt is bounded

	if delay > maxBackoff || delay <= 0 {
		delay = maxBackoff
	}

	// Add jitter (0-25% of delay)
	maxJitter := int64(delay / 4)
	if maxJitter > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err == nil {
			return delay + time.Duration(n.Int64())
		}
	}

	return delay
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
