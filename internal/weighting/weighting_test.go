package weighting

import (
	"errors"
	"math"
	"testing"
	"time"

	"IndexForge/internal/model"
)

var asOf = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

// flatSeries builds count days of constant price ending the day before asOf.
func flatSeries(symbol string, price float64, count int) []model.PricePoint {
	return trendSeries(symbol, price, 0, count)
}

// trendSeries builds count days with a constant daily return.
func trendSeries(symbol string, start, dailyReturn float64, count int) []model.PricePoint {
	points := make([]model.PricePoint, count)
	p := start
	for i := 0; i < count; i++ {
		points[i] = model.PricePoint{
			Symbol: symbol,
			Date:   model.Day(asOf.AddDate(0, 0, -(count - i))),
			Close:  p,
		}
		p *= 1 + dailyReturn
	}
	return points
}

func baseConfig(method model.WeightingMethod, n int) model.StrategyConfig {
	return model.StrategyConfig{
		Frequency:        model.FrequencyWeekly,
		Method:           method,
		MaxWeight:        1.0,
		TargetAssetCount: n,
		MomentumWindow:   90,
		VolatilityWindow: 30,
	}
}

func sumWeights(t *testing.T, w map[string]float64) float64 {
	t.Helper()
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	return sum
}

func TestCompute_EqualWeight(t *testing.T) {
	history := map[string][]model.PricePoint{
		"AAA": flatSeries("AAA", 100, 10),
		"BBB": flatSeries("BBB", 50, 10),
		"CCC": flatSeries("CCC", 25, 10),
	}
	w, err := Compute(history, nil, baseConfig(model.MethodEqual, 3), asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for sym, v := range w {
		if math.Abs(v-1.0/3.0) > 1e-9 {
			t.Errorf("%s: expected 1/3, got %.6f", sym, v)
		}
	}
	if s := sumWeights(t, w); math.Abs(s-1) > model.WeightTolerance {
		t.Errorf("weights sum to %.9f", s)
	}
}

func TestCompute_MomentumDropsNegative(t *testing.T) {
	// LOSER has a negative 90-day return even though its last day rose.
	loser := trendSeries("LOSER", 100, -0.005, 95)
	last := loser[len(loser)-1]
	loser[len(loser)-1].Close = last.Close * 1.03 // price just rose today

	history := map[string][]model.PricePoint{
		"WIN1":  trendSeries("WIN1", 100, 0.002, 95),
		"WIN2":  trendSeries("WIN2", 80, 0.001, 95),
		"LOSER": loser,
	}
	cfg := baseConfig(model.MethodMomentum, 2)
	w, err := Compute(history, nil, cfg, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, held := w["LOSER"]; held {
		t.Fatalf("LOSER must be excluded outright, got weight %.6f", w["LOSER"])
	}
	if w["WIN1"] <= w["WIN2"] {
		t.Errorf("stronger momentum should weigh more: WIN1=%.4f WIN2=%.4f", w["WIN1"], w["WIN2"])
	}
	if s := sumWeights(t, w); math.Abs(s-1) > model.WeightTolerance {
		t.Errorf("weights sum to %.9f", s)
	}
}

func TestCompute_MarketCapRedistributesExcess(t *testing.T) {
	history := map[string][]model.PricePoint{
		"BIG": flatSeries("BIG", 100, 10),
		"MID": flatSeries("MID", 100, 10),
		"SML": flatSeries("SML", 100, 10),
	}
	caps := map[string]float64{"BIG": 8000, "MID": 1500, "SML": 500}
	cfg := baseConfig(model.MethodMarketCap, 3)
	cfg.MaxWeight = 0.5

	w, err := Compute(history, caps, cfg, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w["BIG"] > cfg.MaxWeight+model.WeightTolerance {
		t.Errorf("BIG exceeds cap: %.6f", w["BIG"])
	}
	// Excess redistributes proportionally: MID keeps 3x SML's weight.
	if math.Abs(w["MID"]/w["SML"]-3) > 1e-6 {
		t.Errorf("expected MID/SML ratio 3, got %.6f", w["MID"]/w["SML"])
	}
	if s := sumWeights(t, w); math.Abs(s-1) > model.WeightTolerance {
		t.Errorf("weights sum to %.9f", s)
	}
}

func TestCompute_RiskParityFavorsLowVol(t *testing.T) {
	calm := flatSeries("CALM", 100, 40)
	// Alternate +2%/-2% days for the noisy asset.
	noisy := make([]model.PricePoint, 40)
	p := 100.0
	for i := range noisy {
		noisy[i] = model.PricePoint{
			Symbol: "NOISY",
			Date:   model.Day(asOf.AddDate(0, 0, -(40 - i))),
			Close:  p,
		}
		if i%2 == 0 {
			p *= 1.02
		} else {
			p *= 0.98
		}
	}
	// Give CALM a tiny wiggle so its volatility is nonzero.
	for i := range calm {
		if i%2 == 0 {
			calm[i].Close *= 1.001
		}
	}

	history := map[string][]model.PricePoint{"CALM": calm, "NOISY": noisy}
	w, err := Compute(history, nil, baseConfig(model.MethodRiskParity, 2), asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w["CALM"] <= w["NOISY"] {
		t.Errorf("lower volatility should weigh more: CALM=%.4f NOISY=%.4f", w["CALM"], w["NOISY"])
	}
}

func TestCompute_MinWeightExclusionRenormalizes(t *testing.T) {
	history := map[string][]model.PricePoint{
		"BIG": flatSeries("BIG", 100, 10),
		"MID": flatSeries("MID", 100, 10),
		"SML": flatSeries("SML", 100, 10),
	}
	caps := map[string]float64{"BIG": 8000, "MID": 1900, "SML": 100}
	cfg := baseConfig(model.MethodMarketCap, 3)
	cfg.MinWeight = 0.05

	w, err := Compute(history, caps, cfg, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, held := w["SML"]; held {
		t.Errorf("SML below min_weight must be excluded, got %.6f", w["SML"])
	}
	for sym, v := range w {
		if v < cfg.MinWeight {
			t.Errorf("%s below min_weight after renormalization: %.6f", sym, v)
		}
	}
	if s := sumWeights(t, w); math.Abs(s-1) > model.WeightTolerance {
		t.Errorf("weights sum to %.9f", s)
	}
}

func TestCompute_UnsatisfiableConfig(t *testing.T) {
	history := map[string][]model.PricePoint{
		"AAA": flatSeries("AAA", 100, 10),
		"BBB": flatSeries("BBB", 100, 10),
	}
	cfg := baseConfig(model.MethodEqual, 2)
	cfg.MinWeight = 0.6 // 0.6 * 2 > 1

	_, err := Compute(history, nil, cfg, asOf)
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestCompute_InsufficientHistory(t *testing.T) {
	history := map[string][]model.PricePoint{
		"AAA": trendSeries("AAA", 100, 0.001, 95),
		"BBB": trendSeries("BBB", 100, 0.001, 10), // too short for 90-day momentum
	}
	_, err := Compute(history, nil, baseConfig(model.MethodMomentum, 2), asOf)
	var dataErr *model.InsufficientDataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestCompute_Deterministic(t *testing.T) {
	history := map[string][]model.PricePoint{
		"AAA": trendSeries("AAA", 100, 0.002, 95),
		"BBB": trendSeries("BBB", 80, 0.001, 95),
		"CCC": trendSeries("CCC", 60, 0.003, 95),
	}
	cfg := baseConfig(model.MethodMomentum, 3)
	first, err := Compute(history, nil, cfg, asOf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Compute(history, nil, cfg, asOf)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for sym, w := range first {
			if again[sym] != w {
				t.Fatalf("run %d: %s weight %v != %v", i, sym, again[sym], w)
			}
		}
	}
}
