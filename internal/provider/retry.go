package provider

import (
	"context"
	"errors"
	"log"
	"time"

	"IndexForge/internal/model"
)

// RetryingProvider wraps a Provider with bounded exponential backoff.
// Rate-limit responses wait out a cooldown before the next attempt instead
// of retrying immediately.
type RetryingProvider struct {
	Inner    Provider
	Attempts int           // total attempts, default 3
	Backoff  time.Duration // first retry delay, doubled per attempt
	Cooldown time.Duration // delay after a rate-limit response
}

// NewRetryingProvider wraps inner with the default retry policy.
func NewRetryingProvider(inner Provider) *RetryingProvider {
	return &RetryingProvider{
		Inner:    inner,
		Attempts: 3,
		Backoff:  time.Second,
		Cooldown: 30 * time.Second,
	}
}

func (p *RetryingProvider) Name() string { return p.Inner.Name() }

func (p *RetryingProvider) FetchTimeSeries(ctx context.Context, symbols []string, start, end time.Time) (map[string][]model.PricePoint, error) {
	var lastErr error
	delay := p.Backoff
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		rows, err := p.Inner.FetchTimeSeries(ctx, symbols, start, end)
		if err == nil {
			return rows, nil
		}
		lastErr = err

		var provErr *model.ProviderError
		if !errors.As(err, &provErr) {
			return nil, err
		}
		if attempt == p.Attempts {
			break
		}

		wait := delay
		if provErr.RateLimited {
			wait = p.Cooldown
			log.Printf("[WARN] provider %s rate limited, cooling down %s (attempt %d/%d)",
				p.Inner.Name(), wait, attempt, p.Attempts)
		} else {
			log.Printf("[WARN] provider %s fetch failed: %v, retrying in %s (attempt %d/%d)",
				p.Inner.Name(), err, wait, attempt, p.Attempts)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
	return nil, lastErr
}
