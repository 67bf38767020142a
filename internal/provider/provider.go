package provider

import (
	"context"
	"time"

	"IndexForge/internal/model"
)

// Provider defines the contract for fetching historical market data.
// Implementations return per-asset rows in chronological order.
type Provider interface {
	FetchTimeSeries(ctx context.Context, symbols []string, start, end time.Time) (map[string][]model.PricePoint, error)
	Name() string
}
