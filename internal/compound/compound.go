// Package compound turns committed allocations plus daily prices into the
// index value series. Compounding is deterministic: assets are summed in
// ascending symbol order, so recomputing from identical inputs reproduces
// bit-identical values.
package compound

import (
	"fmt"
	"math"
	"sort"
	"time"

	"IndexForge/internal/model"
)

// Compound produces the index series from the first allocation date through
// the last priced trading day. Each day's return uses the previous day's
// allocation; an asset missing a price contributes zero return but keeps
// its weight, and the day is flagged stale.
func Compound(allocs []model.Allocation, history map[string][]model.PricePoint, base float64) ([]model.IndexValue, error) {
	if len(allocs) == 0 {
		return nil, &model.InsufficientDataError{What: "compounding", Need: 1, Got: 0}
	}
	if base <= 0 {
		return nil, &model.ConsistencyError{Reason: fmt.Sprintf("base value %g is not positive", base)}
	}

	ordered := make([]model.Allocation, len(allocs))
	copy(ordered, allocs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	closes := indexCloses(history)
	dates := tradingDates(history, ordered[0].Date)
	if len(dates) == 0 {
		return nil, &model.InsufficientDataError{What: "compounding", Need: 1, Got: 0}
	}

	values := make([]model.IndexValue, 0, len(dates))
	values = append(values, model.IndexValue{Date: dates[0], Value: base})

	for i := 1; i < len(dates); i++ {
		today, prev := dates[i], dates[i-1]
		alloc := effectiveAllocation(ordered, prev)

		dayReturn := 0.0
		stale := false
		for _, sym := range model.SortedSymbols(alloc.Weights) {
			pToday, okToday := closes[sym][today.Unix()]
			pPrev, okPrev := closes[sym][prev.Unix()]
			if !okToday || !okPrev || pPrev == 0 {
				stale = true // stale-price tolerance: zero return, weight kept
				continue
			}
			dayReturn += alloc.Weights[sym] * (pToday/pPrev - 1)
		}

		value := values[i-1].Value * (1 + dayReturn)
		if math.IsNaN(value) || value <= 0 {
			return nil, &model.ConsistencyError{
				Reason: fmt.Sprintf("compounded value on %s is %g", today.Format("2006-01-02"), value),
			}
		}
		values = append(values, model.IndexValue{
			Date:             today,
			Value:            value,
			DailyReturn:      dayReturn,
			CumulativeReturn: value/base - 1,
			Stale:            stale,
		})
	}
	return values, nil
}

// effectiveAllocation returns the latest allocation committed on or before
// date. Falls back to the earliest allocation when date precedes them all.
func effectiveAllocation(ordered []model.Allocation, date time.Time) model.Allocation {
	eff := ordered[0]
	for _, a := range ordered {
		if a.Date.After(date) {
			break
		}
		eff = a
	}
	return eff
}

func indexCloses(history map[string][]model.PricePoint) map[string]map[int64]float64 {
	out := make(map[string]map[int64]float64, len(history))
	for sym, series := range history {
		m := make(map[int64]float64, len(series))
		for _, p := range series {
			m[model.Day(p.Date).Unix()] = p.Close
		}
		out[sym] = m
	}
	return out
}

func tradingDates(history map[string][]model.PricePoint, from time.Time) []time.Time {
	seen := make(map[int64]time.Time)
	for _, series := range history {
		for _, p := range series {
			d := model.Day(p.Date)
			if d.Before(model.Day(from)) {
				continue
			}
			seen[d.Unix()] = d
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
