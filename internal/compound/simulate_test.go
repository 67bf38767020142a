package compound

import (
	"errors"
	"math"
	"testing"

	"IndexForge/internal/model"
)

func TestSimulate_TwentyPercentGain(t *testing.T) {
	series := []model.IndexValue{
		{Date: day(2), Value: 100, CumulativeReturn: 0},
		{Date: day(3), Value: 110, DailyReturn: 0.10, CumulativeReturn: 0.10},
		{Date: day(4), Value: 120, DailyReturn: 120.0/110.0 - 1, CumulativeReturn: 0.20},
	}
	res, err := Simulate(series, 10000, day(2), "USD", day(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.AmountFinal-12000) > 1e-9 {
		t.Errorf("final amount = %.2f, want 12000", res.AmountFinal)
	}
	if math.Abs(res.ROIPercent-20.0) > 1e-9 {
		t.Errorf("roi = %.4f, want 20.0", res.ROIPercent)
	}
	if res.Stale {
		t.Error("simulation through the latest value must not be stale")
	}
}

func TestSimulate_MidSeriesEntry(t *testing.T) {
	series := []model.IndexValue{
		{Date: day(2), Value: 100},
		{Date: day(3), Value: 110},
		{Date: day(4), Value: 121},
	}
	res, err := Simulate(series, 1000, day(3), "EUR", day(4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.AmountFinal-1100) > 1e-9 {
		t.Errorf("final amount = %.2f, want 1100", res.AmountFinal)
	}
	if !res.From.Equal(day(3)) {
		t.Errorf("entry date = %s, want day 3", res.From)
	}
}

func TestSimulate_StalenessIndicator(t *testing.T) {
	series := []model.IndexValue{
		{Date: day(2), Value: 100},
		{Date: day(3), Value: 105},
	}
	res, err := Simulate(series, 500, day(2), "USD", day(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Stale {
		t.Error("series ending before now must be reported stale")
	}
}

func TestSimulate_NoHistory(t *testing.T) {
	_, err := Simulate(nil, 1000, day(2), "USD", day(4))
	var dataErr *model.InsufficientDataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}
