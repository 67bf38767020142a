package compound

import (
	"errors"
	"math"
	"testing"
	"time"

	"IndexForge/internal/model"
)

func day(d int) time.Time {
	return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC)
}

func point(sym string, d int, close float64) model.PricePoint {
	return model.PricePoint{Symbol: sym, Date: day(d), Close: close}
}

func equalAlloc(t *testing.T, d int, syms ...string) model.Allocation {
	t.Helper()
	w := make(map[string]float64, len(syms))
	for _, s := range syms {
		w[s] = 1.0 / float64(len(syms))
	}
	a, err := model.NewAllocation(day(d), w)
	if err != nil {
		t.Fatalf("allocation: %v", err)
	}
	return a
}

func TestCompound_EqualWeightScenario(t *testing.T) {
	// Three assets, each returning +1% then -2%: the equal-weight index
	// compounds 100 -> 101 -> 98.98.
	history := map[string][]model.PricePoint{
		"AAA": {point("AAA", 2, 100), point("AAA", 3, 101), point("AAA", 4, 98.98)},
		"BBB": {point("BBB", 2, 50), point("BBB", 3, 50.5), point("BBB", 4, 49.49)},
		"CCC": {point("CCC", 2, 200), point("CCC", 3, 202), point("CCC", 4, 197.96)},
	}
	allocs := []model.Allocation{equalAlloc(t, 2, "AAA", "BBB", "CCC")}

	values, err := Compound(allocs, history, model.IndexBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{100, 101, 98.98}
	if len(values) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(values))
	}
	for i, w := range want {
		if math.Abs(values[i].Value-w) > 1e-9 {
			t.Errorf("value[%d] = %.6f, want %.6f", i, values[i].Value, w)
		}
	}
}

func TestCompound_RoundTripLaw(t *testing.T) {
	history := map[string][]model.PricePoint{
		"AAA": {point("AAA", 2, 100), point("AAA", 3, 103), point("AAA", 4, 99), point("AAA", 5, 104)},
		"BBB": {point("BBB", 2, 40), point("BBB", 3, 39), point("BBB", 4, 41), point("BBB", 5, 40)},
	}
	allocs := []model.Allocation{equalAlloc(t, 2, "AAA", "BBB")}

	values, err := Compound(allocs, history, model.IndexBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(values); i++ {
		want := values[i-1].Value * (1 + values[i].DailyReturn)
		if values[i].Value != want {
			t.Errorf("value[%d] = %v, want value[%d] * (1 + r) = %v", i, values[i].Value, i-1, want)
		}
	}
}

func TestCompound_Idempotent(t *testing.T) {
	history := map[string][]model.PricePoint{
		"AAA": {point("AAA", 2, 100), point("AAA", 3, 101.7), point("AAA", 4, 99.3), point("AAA", 5, 100.1)},
		"BBB": {point("BBB", 2, 77), point("BBB", 3, 76.2), point("BBB", 4, 78.9), point("BBB", 5, 77.7)},
		"CCC": {point("CCC", 2, 13), point("CCC", 3, 13.1), point("CCC", 4, 12.8), point("CCC", 5, 13.4)},
	}
	allocs := []model.Allocation{equalAlloc(t, 2, "AAA", "BBB", "CCC")}

	first, err := Compound(allocs, history, model.IndexBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for run := 0; run < 20; run++ {
		again, err := Compound(allocs, history, model.IndexBase)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := range first {
			if again[i].Value != first[i].Value || again[i].DailyReturn != first[i].DailyReturn {
				t.Fatalf("run %d: value[%d] differs: %v vs %v", run, i, again[i], first[i])
			}
		}
	}
}

func TestCompound_UsesPreviousDayAllocation(t *testing.T) {
	// The allocation committed on day 3 must not influence day 3's return.
	history := map[string][]model.PricePoint{
		"AAA": {point("AAA", 2, 100), point("AAA", 3, 110), point("AAA", 4, 110)},
		"BBB": {point("BBB", 2, 100), point("BBB", 3, 100), point("BBB", 4, 110)},
	}
	all1, err := model.NewAllocation(day(2), map[string]float64{"AAA": 1})
	if err != nil {
		t.Fatal(err)
	}
	all2, err := model.NewAllocation(day(3), map[string]float64{"BBB": 1})
	if err != nil {
		t.Fatal(err)
	}

	values, err := Compound([]model.Allocation{all1, all2}, history, model.IndexBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Day 3: AAA's +10% under the day-2 allocation.
	if math.Abs(values[1].DailyReturn-0.10) > 1e-12 {
		t.Errorf("day 3 return = %.6f, want 0.10 from previous-day allocation", values[1].DailyReturn)
	}
	// Day 4: BBB's +10% under the day-3 allocation.
	if math.Abs(values[2].DailyReturn-0.10) > 1e-12 {
		t.Errorf("day 4 return = %.6f, want 0.10 from day-3 allocation", values[2].DailyReturn)
	}
}

func TestCompound_StalePriceTolerance(t *testing.T) {
	// BBB has no price on day 3: zero contribution, day flagged stale.
	history := map[string][]model.PricePoint{
		"AAA": {point("AAA", 2, 100), point("AAA", 3, 102), point("AAA", 4, 102)},
		"BBB": {point("BBB", 2, 100), point("BBB", 4, 100)},
	}
	allocs := []model.Allocation{equalAlloc(t, 2, "AAA", "BBB")}

	values, err := Compound(allocs, history, model.IndexBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !values[1].Stale {
		t.Error("day with missing price must be flagged stale")
	}
	if math.Abs(values[1].DailyReturn-0.01) > 1e-12 {
		t.Errorf("day 3 return = %.6f, want 0.01 (AAA half-weight only)", values[1].DailyReturn)
	}
	// Day 4 still lacks BBB's day-3 close, so its return is undefined too.
	if !values[2].Stale {
		t.Error("day following a price gap must also be flagged stale")
	}
	if values[2].DailyReturn != 0 {
		t.Errorf("day 4 return = %.6f, want 0 (AAA flat, BBB gap)", values[2].DailyReturn)
	}
}

func TestCompound_NoAllocations(t *testing.T) {
	_, err := Compound(nil, map[string][]model.PricePoint{}, model.IndexBase)
	var dataErr *model.InsufficientDataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}
