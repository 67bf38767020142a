package provider

import (
	"context"
	"time"

	"IndexForge/internal/model"
)

// MockProvider returns controllable fixed data for development and testing.
type MockProvider struct {
	Series map[string][]model.PricePoint
	Err    error
	// Calls records every requested window, newest last.
	Calls []FetchCall
}

// FetchCall is one recorded FetchTimeSeries invocation.
type FetchCall struct {
	Symbols    []string
	Start, End time.Time
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) FetchTimeSeries(_ context.Context, symbols []string, start, end time.Time) (map[string][]model.PricePoint, error) {
	m.Calls = append(m.Calls, FetchCall{Symbols: symbols, Start: start, End: end})
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string][]model.PricePoint, len(symbols))
	for _, sym := range symbols {
		for _, pt := range m.Series[sym] {
			d := model.Day(pt.Date)
			if d.Before(model.Day(start)) || d.After(model.Day(end)) {
				continue
			}
			out[sym] = append(out[sym], pt)
		}
	}
	return out, nil
}

// GenerateSeries builds count daily points ending at end, drifting from base.
func GenerateSeries(symbol string, base float64, count int, end time.Time) []model.PricePoint {
	points := make([]model.PricePoint, count)
	for i := 0; i < count; i++ {
		p := base * (1 + float64(i-count/2)*0.001)
		points[i] = model.PricePoint{
			Symbol: symbol,
			Date:   model.Day(end.AddDate(0, 0, -(count - 1 - i))),
			Close:  p,
			Volume: 1000000,
		}
	}
	return points
}
