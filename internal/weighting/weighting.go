// Package weighting implements the index weighting methods. Compute is a
// pure function of price history and strategy config; given identical
// inputs it returns identical weights.
package weighting

import (
	"fmt"
	"math"
	"sort"
	"time"

	"IndexForge/internal/model"
)

// Compute derives the target weight map for asOf. caps supplies market
// capitalizations for the market-cap method and may be nil otherwise.
// Assets always iterate in ascending symbol order so results are
// reproducible bit for bit.
func Compute(history map[string][]model.PricePoint, caps map[string]float64, cfg model.StrategyConfig, asOf time.Time) (map[string]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	scores, err := rawScores(history, caps, cfg)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, &model.InsufficientDataError{What: "weighting", Need: 1, Got: 0}
	}

	// Keep the top target_asset_count assets by score, ties broken by symbol.
	selected := selectTop(scores, cfg.TargetAssetCount)

	weights := normalize(selected)

	// min-weight exclusion and max-weight capping interact: dropping a small
	// asset can push another over the cap and vice versa. Iterate to a fixed
	// point, bounded by target_asset_count passes.
	for pass := 0; ; pass++ {
		if pass > cfg.TargetAssetCount {
			return nil, &model.ConfigurationError{
				Reason: fmt.Sprintf("weight bounds did not converge after %d passes (min=%.4f max=%.4f)",
					pass, cfg.MinWeight, cfg.MaxWeight),
			}
		}
		capped, err := applyCap(weights, cfg.MaxWeight)
		if err != nil {
			return nil, err
		}
		dropped := dropBelowMin(capped, cfg.MinWeight)
		if len(dropped) == 0 {
			return nil, &model.ConfigurationError{
				Reason: "min_weight filter removed every asset",
			}
		}
		if len(dropped) == len(capped) {
			// Nothing excluded: every weight already respects both bounds.
			weights = capped
			break
		}
		weights = normalize(dropped)
	}

	sum := 0.0
	for _, sym := range model.SortedSymbols(weights) {
		sum += weights[sym]
	}
	if math.Abs(sum-1.0) > model.WeightTolerance {
		return nil, &model.ConsistencyError{
			Reason: fmt.Sprintf("final weights sum to %.9f", sum),
		}
	}
	return weights, nil
}

// rawScores computes the per-asset positive score the method weights by.
// Assets without enough history never receive a score; if fewer than
// target_asset_count assets qualify the whole rebalance is skipped.
func rawScores(history map[string][]model.PricePoint, caps map[string]float64, cfg model.StrategyConfig) (map[string]float64, error) {
	scores := make(map[string]float64)
	qualified := 0

	for _, sym := range model.SortedSymbols(history) {
		series := history[sym]
		switch cfg.Method {
		case model.MethodEqual:
			if len(series) == 0 {
				continue
			}
			qualified++
			scores[sym] = 1

		case model.MethodMomentum:
			if len(series) < cfg.MomentumWindow+1 {
				continue
			}
			qualified++
			last := series[len(series)-1].Close
			past := series[len(series)-1-cfg.MomentumWindow].Close
			mom := last/past - 1
			// Non-positive momentum is an exclusion, not a low weight.
			if mom > 0 {
				scores[sym] = mom
			}

		case model.MethodMarketCap:
			if len(series) == 0 || caps[sym] <= 0 {
				continue
			}
			qualified++
			scores[sym] = caps[sym]

		case model.MethodRiskParity:
			if len(series) < cfg.VolatilityWindow+1 {
				continue
			}
			qualified++
			window := series[len(series)-1-cfg.VolatilityWindow:]
			sigma := dailyVolatility(window)
			if sigma > 0 {
				scores[sym] = 1 / sigma
			}
		}
	}

	if qualified < cfg.TargetAssetCount {
		return nil, &model.InsufficientDataError{
			What: fmt.Sprintf("%s weighting", cfg.Method),
			Need: cfg.TargetAssetCount,
			Got:  qualified,
		}
	}
	return scores, nil
}

func dailyVolatility(series []model.PricePoint) float64 {
	if len(series) < 2 {
		return 0
	}
	returns := make([]float64, 0, len(series)-1)
	mean := 0.0
	for i := 1; i < len(series); i++ {
		r := series[i].Close/series[i-1].Close - 1
		returns = append(returns, r)
		mean += r
	}
	mean /= float64(len(returns))
	ss := 0.0
	for _, r := range returns {
		ss += (r - mean) * (r - mean)
	}
	return math.Sqrt(ss / float64(len(returns)-1))
}

func selectTop(scores map[string]float64, n int) map[string]float64 {
	if len(scores) <= n {
		out := make(map[string]float64, len(scores))
		for k, v := range scores {
			out[k] = v
		}
		return out
	}
	syms := model.SortedSymbols(scores)
	sort.SliceStable(syms, func(i, j int) bool { return scores[syms[i]] > scores[syms[j]] })
	out := make(map[string]float64, n)
	for _, sym := range syms[:n] {
		out[sym] = scores[sym]
	}
	return out
}

func normalize(scores map[string]float64) map[string]float64 {
	total := 0.0
	for _, sym := range model.SortedSymbols(scores) {
		total += scores[sym]
	}
	out := make(map[string]float64, len(scores))
	for _, sym := range model.SortedSymbols(scores) {
		out[sym] = scores[sym] / total
	}
	return out
}

// applyCap clamps weights to maxWeight, redistributing the excess
// proportionally over uncapped assets. Repeats until no asset exceeds the
// cap or only one asset remains uncapped.
func applyCap(weights map[string]float64, maxWeight float64) (map[string]float64, error) {
	out := make(map[string]float64, len(weights))
	for k, v := range weights {
		out[k] = v
	}
	capped := make(map[string]bool)

	for {
		excess := 0.0
		uncappedSum := 0.0
		for _, sym := range model.SortedSymbols(out) {
			if out[sym] > maxWeight+model.WeightTolerance {
				excess += out[sym] - maxWeight
				out[sym] = maxWeight
				capped[sym] = true
			} else if !capped[sym] {
				uncappedSum += out[sym]
			}
		}
		if excess <= model.WeightTolerance {
			return out, nil
		}
		if uncappedSum <= 0 {
			return nil, &model.ConfigurationError{
				Reason: fmt.Sprintf("max_weight %.4f cannot absorb excess weight with %d assets", maxWeight, len(out)),
			}
		}
		for _, sym := range model.SortedSymbols(out) {
			if !capped[sym] {
				out[sym] += excess * out[sym] / uncappedSum
			}
		}
	}
}

func dropBelowMin(weights map[string]float64, minWeight float64) map[string]float64 {
	out := make(map[string]float64, len(weights))
	for _, sym := range model.SortedSymbols(weights) {
		if weights[sym]+model.WeightTolerance >= minWeight {
			out[sym] = weights[sym]
		}
	}
	return out
}
