// Package risk derives performance and risk statistics from daily return
// series. Every function is pure and safe to run in parallel across
// independent windows.
package risk

import (
	"math"
	"sort"
	"time"

	"IndexForge/internal/model"
)

// TradingDaysPerYear is the annualization factor base.
const TradingDaysPerYear = 252

// DailyReturns extracts the daily return series from index values,
// skipping the base entry.
func DailyReturns(values []model.IndexValue) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for _, v := range values[1:] {
		out = append(out, v.DailyReturn)
	}
	return out
}

func mean(r []float64) float64 {
	if len(r) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range r {
		sum += v
	}
	return sum / float64(len(r))
}

// Stdev is the sample standard deviation. Zero when fewer than two points.
func Stdev(r []float64) float64 {
	if len(r) < 2 {
		return 0
	}
	m := mean(r)
	ss := 0.0
	for _, v := range r {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(r)-1))
}

// Volatility annualizes the daily standard deviation.
func Volatility(r []float64) float64 {
	return Stdev(r) * math.Sqrt(TradingDaysPerYear)
}

// Sharpe is the annualized excess return over daily volatility. Returns 0
// when the series has zero deviation, never dividing by zero.
func Sharpe(r []float64, riskFreeDaily float64) float64 {
	sd := Stdev(r)
	if sd == 0 {
		return 0
	}
	return (mean(r) - riskFreeDaily) / sd * math.Sqrt(TradingDaysPerYear)
}

// Sortino is Sharpe with only negative-return days in the denominator.
// Returns 0 when there are no negative days.
func Sortino(r []float64, riskFreeDaily float64) float64 {
	var downside []float64
	for _, v := range r {
		if v < 0 {
			downside = append(downside, v)
		}
	}
	sd := Stdev(downside)
	if sd == 0 {
		return 0
	}
	return (mean(r) - riskFreeDaily) / sd * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown is the worst peak-to-trough decline of the compounded series,
// reported as a non-positive fraction (0 for a series that never declines).
func MaxDrawdown(r []float64) float64 {
	value := 1.0
	peak := 1.0
	worst := 0.0
	for _, v := range r {
		value *= 1 + v
		if value > peak {
			peak = value
		}
		dd := (value - peak) / peak
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

// HistoricalVaR is the historical-simulation value at risk at the given
// confidence (e.g. 0.95), reported as a positive loss magnitude.
func HistoricalVaR(r []float64, confidence float64) float64 {
	if len(r) == 0 {
		return 0
	}
	sorted := make([]float64, len(r))
	copy(sorted, r)
	sort.Float64s(sorted)
	idx := int(math.Floor((1 - confidence) * float64(len(sorted))))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	loss := -sorted[idx]
	if loss < 0 {
		return 0
	}
	return loss
}

// BetaCorrelation computes beta and correlation of r against benchmark b
// over their overlapping prefix. Fewer than two overlapping observations
// is an InsufficientDataError, never a fabricated zero.
func BetaCorrelation(r, b []float64) (beta, correlation float64, err error) {
	n := len(r)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0, 0, &model.InsufficientDataError{What: "beta/correlation", Need: 2, Got: n}
	}
	r = r[len(r)-n:]
	b = b[len(b)-n:]

	mr, mb := mean(r), mean(b)
	var cov, varR, varB float64
	for i := 0; i < n; i++ {
		cov += (r[i] - mr) * (b[i] - mb)
		varR += (r[i] - mr) * (r[i] - mr)
		varB += (b[i] - mb) * (b[i] - mb)
	}
	cov /= float64(n - 1)
	varR /= float64(n - 1)
	varB /= float64(n - 1)

	if varB == 0 {
		return 0, 0, &model.InsufficientDataError{What: "benchmark variance", Need: 2, Got: n}
	}
	beta = cov / varB
	if varR == 0 {
		return beta, 0, nil
	}
	correlation = cov / math.Sqrt(varR*varB)
	return beta, correlation, nil
}

// Calculate builds one atomic RiskMetrics record over the trailing
// windowDays of r. Skips with InsufficientDataError when the series is
// shorter than the window. benchmark may be nil; beta and correlation are
// then left zero.
func Calculate(r, benchmark []float64, windowDays int, riskFreeAnnual float64, now time.Time) (model.RiskMetrics, error) {
	if windowDays <= 0 {
		return model.RiskMetrics{}, &model.ConfigurationError{Reason: "metrics window must be positive"}
	}
	if len(r) < windowDays {
		return model.RiskMetrics{}, &model.InsufficientDataError{
			What: "risk metrics window", Need: windowDays, Got: len(r),
		}
	}
	window := r[len(r)-windowDays:]
	riskFreeDaily := riskFreeAnnual / TradingDaysPerYear

	m := model.RiskMetrics{
		ComputedAt:  now,
		WindowDays:  windowDays,
		Sharpe:      Sharpe(window, riskFreeDaily),
		Sortino:     Sortino(window, riskFreeDaily),
		MaxDrawdown: MaxDrawdown(window),
		VaR95:       HistoricalVaR(window, 0.95),
		VaR99:       HistoricalVaR(window, 0.99),
		Volatility:  Volatility(window),
	}

	if len(benchmark) > 0 {
		bWindow := benchmark
		if len(bWindow) > windowDays {
			bWindow = bWindow[len(bWindow)-windowDays:]
		}
		beta, corr, err := BetaCorrelation(window, bWindow)
		if err != nil {
			return model.RiskMetrics{}, err
		}
		m.Beta = beta
		m.Correlation = corr
	}
	return m, nil
}
