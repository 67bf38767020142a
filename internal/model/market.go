package model

import (
	"sort"
	"time"
)

// Asset is immutable reference data for one basket constituent.
type Asset struct {
	Symbol    string  `yaml:"symbol"`
	Name      string  `yaml:"name"`
	Sector    string  `yaml:"sector"`
	MarketCap float64 `yaml:"market_cap"` // used by the market-cap weighting method
}

// PricePoint is one close/volume record for an asset on a trading day.
// Rows are append-only: per asset, dates are strictly increasing and no
// (symbol, date) pair repeats.
type PricePoint struct {
	Symbol string
	Date   time.Time
	Close  float64
	Volume float64
}

// Day truncates t to a UTC calendar day. All engine dates are day-granular.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// SortedSymbols returns the keys of a per-asset map in ascending order.
// Weight and return summations iterate in this order so that recomputation
// is bit-identical.
func SortedSymbols[V any](m map[string]V) []string {
	syms := make([]string, 0, len(m))
	for s := range m {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}
