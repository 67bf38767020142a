package model

import "time"

// IndexBase is the conventional value of the index on its first date.
const IndexBase = 100.0

// IndexValue is one day of the compounded index series.
// Invariant: Value = previous Value * (1 + DailyReturn).
type IndexValue struct {
	Date             time.Time
	Value            float64
	DailyReturn      float64
	CumulativeReturn float64
	// Stale marks a day on which at least one held asset was missing a
	// price and contributed zero return while keeping its weight.
	Stale bool
}

// RiskMetrics is one atomic risk/performance record over a trailing window.
type RiskMetrics struct {
	ComputedAt  time.Time
	WindowDays  int
	Sharpe      float64
	Sortino     float64
	MaxDrawdown float64
	VaR95       float64
	VaR99       float64
	Beta        float64
	Correlation float64
	Volatility  float64
}

// SimulationResult is the outcome of replaying the index against an amount.
type SimulationResult struct {
	Currency    string
	AmountStart float64
	AmountFinal float64
	ROIPercent  float64
	From        time.Time
	To          time.Time
	// Stale indicates the series has not been refreshed today; callers get
	// the last committed state plus this flag rather than an error.
	Stale bool
}
