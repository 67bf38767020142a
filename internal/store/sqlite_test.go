package store

import (
	"path/filepath"
	"testing"
	"time"

	"IndexForge/internal/model"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func d(day int) time.Time {
	return time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC)
}

func TestSavePrices_AppendOnly(t *testing.T) {
	s := openTestStore(t)

	points := []model.PricePoint{
		{Symbol: "AAA", Date: d(2), Close: 100, Volume: 10},
		{Symbol: "AAA", Date: d(3), Close: 101, Volume: 11},
	}
	if err := s.SavePrices(points); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Re-saving the same day with a different close must not overwrite.
	if err := s.SavePrices([]model.PricePoint{{Symbol: "AAA", Date: d(3), Close: 999}}); err != nil {
		t.Fatalf("re-save: %v", err)
	}

	history, err := s.LoadHistory("AAA", d(1), d(10))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(history))
	}
	if history[1].Close != 101 {
		t.Errorf("existing row overwritten: close = %v", history[1].Close)
	}
	if !history[0].Date.Before(history[1].Date) {
		t.Error("history must be ordered by date")
	}

	last, ok, err := s.LastDate("AAA")
	if err != nil || !ok {
		t.Fatalf("last date: ok=%v err=%v", ok, err)
	}
	if !last.Equal(d(3)) {
		t.Errorf("last date = %s, want %s", last, d(3))
	}
}

func TestAllocation_AtomicRewrite(t *testing.T) {
	s := openTestStore(t)

	first, err := model.NewAllocation(d(2), map[string]float64{"AAA": 0.6, "BBB": 0.4})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAllocation(first); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Rewriting the same date replaces the whole row set, not a subset.
	second, err := model.NewAllocation(d(2), map[string]float64{"CCC": 1.0})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SaveAllocation(second); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	got, ok, err := s.AllocationAt(d(2))
	if err != nil || !ok {
		t.Fatalf("allocation at: ok=%v err=%v", ok, err)
	}
	if len(got.Weights) != 1 || got.Weights["CCC"] != 1.0 {
		t.Errorf("expected {CCC: 1.0}, got %v", got.Weights)
	}
}

func TestAllocationHistory_Ordered(t *testing.T) {
	s := openTestStore(t)

	for _, day := range []int{9, 2, 16} {
		a, err := model.NewAllocation(d(day), map[string]float64{"AAA": 1})
		if err != nil {
			t.Fatal(err)
		}
		if err := s.SaveAllocation(a); err != nil {
			t.Fatal(err)
		}
	}
	allocs, err := s.AllocationHistory(d(1), d(30))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(allocs) != 3 {
		t.Fatalf("expected 3 allocations, got %d", len(allocs))
	}
	for i := 1; i < len(allocs); i++ {
		if !allocs[i-1].Date.Before(allocs[i].Date) {
			t.Error("allocations must be ordered by date")
		}
	}

	latest, ok, err := s.LatestAllocation()
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if !latest.Date.Equal(d(16)) {
		t.Errorf("latest date = %s, want %s", latest.Date, d(16))
	}
}

func TestConfigVersions_ActiveByDate(t *testing.T) {
	s := openTestStore(t)

	old := model.StrategyConfig{
		Frequency: model.FrequencyWeekly, Method: model.MethodEqual,
		MaxWeight: 1, TargetAssetCount: 3,
	}.WithDefaults(d(2))
	newer := model.StrategyConfig{
		Frequency: model.FrequencyMonthly, Method: model.MethodMomentum,
		MaxWeight: 0.5, TargetAssetCount: 5,
	}.WithDefaults(d(10))

	if err := s.SaveConfigVersion(old); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveConfigVersion(newer); err != nil {
		t.Fatal(err)
	}

	// Historical date resolves to the config active back then.
	got, ok, err := s.ActiveConfig(d(5))
	if err != nil || !ok {
		t.Fatalf("active at d5: ok=%v err=%v", ok, err)
	}
	if got.Version != old.Version || got.Method != model.MethodEqual {
		t.Errorf("expected the older version at d5, got %s/%s", got.Version, got.Method)
	}

	got, ok, err = s.ActiveConfig(d(20))
	if err != nil || !ok {
		t.Fatalf("active at d20: ok=%v err=%v", ok, err)
	}
	if got.Version != newer.Version || got.Method != model.MethodMomentum {
		t.Errorf("expected the newer version at d20, got %s/%s", got.Version, got.Method)
	}
}

func TestIndexValues_Roundtrip(t *testing.T) {
	s := openTestStore(t)

	values := []model.IndexValue{
		{Date: d(2), Value: 100, DailyReturn: 0, CumulativeReturn: 0},
		{Date: d(3), Value: 101, DailyReturn: 0.01, CumulativeReturn: 0.01, Stale: true},
	}
	if err := s.SaveIndexValues(values); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.IndexHistory(d(1), d(10))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 values, got %d", len(got))
	}
	if !got[1].Stale {
		t.Error("stale flag must survive persistence")
	}
	latest, ok, err := s.LatestIndexValue()
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if latest.Value != 101 {
		t.Errorf("latest value = %v, want 101", latest.Value)
	}
}

func TestCheckpoints_FetchWatermarkAndSkips(t *testing.T) {
	s := openTestStore(t)

	if _, ok, err := s.LastFetch("idx"); err != nil || ok {
		t.Fatalf("fresh store must have no watermark: ok=%v err=%v", ok, err)
	}
	if err := s.SetLastFetch("idx", d(13)); err != nil {
		t.Fatal(err)
	}
	last, ok, err := s.LastFetch("idx")
	if err != nil || !ok {
		t.Fatalf("watermark: ok=%v err=%v", ok, err)
	}
	if !last.Equal(d(13)) {
		t.Errorf("watermark = %s, want %s", last, d(13))
	}

	runID := uuid.New()
	if err := s.StartRun(runID, "idx", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkStage(runID, "fetch", "ok", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordSkippedRebalance(d(13), "insufficient data"); err != nil {
		t.Fatal(err)
	}
}

func TestTradingDates_Distinct(t *testing.T) {
	s := openTestStore(t)

	points := []model.PricePoint{
		{Symbol: "AAA", Date: d(2), Close: 1},
		{Symbol: "BBB", Date: d(2), Close: 2},
		{Symbol: "AAA", Date: d(3), Close: 1},
	}
	if err := s.SavePrices(points); err != nil {
		t.Fatal(err)
	}
	dates, err := s.TradingDates(d(1), d(10))
	if err != nil {
		t.Fatalf("trading dates: %v", err)
	}
	if len(dates) != 2 {
		t.Fatalf("expected 2 distinct dates, got %d", len(dates))
	}
}
