// Package rebalance decides when the basket composition is recomputed and
// commits the result atomically.
package rebalance

import (
	"fmt"
	"log"
	"time"

	"IndexForge/internal/model"
	"IndexForge/internal/store"
	"IndexForge/internal/weighting"
)

// State tracks one rebalance event through its lifecycle.
type State string

const (
	StateScheduled   State = "scheduled"
	StateDue         State = "due"
	StateRebalancing State = "rebalancing"
	StateCommitted   State = "committed"
	StateSkipped     State = "skipped"
)

// historyLookback bounds how much price history is handed to the weighting
// engine; two years comfortably covers the longest trailing window.
const historyLookback = 2 // years

// Rebalancer applies the weighting engine on schedule.
type Rebalancer struct {
	Prices       store.PriceRepository
	Allocs       store.AllocationRepository
	Checkpoints  store.CheckpointRepository
	SnapshotPath string
}

// Result reports what one Run did.
type Result struct {
	State      State
	Allocation model.Allocation
	SkipReason string
	// AlreadyCommitted marks the idempotent no-op path: the date had a
	// committed allocation before this run.
	AlreadyCommitted bool
}

// Run evaluates the schedule for asOf and, if due, computes and commits a
// new allocation. Recoverable weighting failures retain the previous
// allocation and record a skip; they never fail the pipeline.
func (r *Rebalancer) Run(cfg model.StrategyConfig, universe []model.Asset, asOf time.Time) (Result, error) {
	asOf = model.Day(asOf)

	// Idempotent: a committed allocation for asOf means this event is done.
	if existing, ok, err := r.Allocs.AllocationAt(asOf); err != nil {
		return Result{}, fmt.Errorf("check committed allocation: %w", err)
	} else if ok {
		return Result{State: StateCommitted, Allocation: existing, AlreadyCommitted: true}, nil
	}

	prev, hasPrev, err := r.Allocs.LatestAllocation()
	if err != nil {
		return Result{}, fmt.Errorf("load latest allocation: %w", err)
	}

	due, err := r.isDue(cfg.Frequency, prev.Date, hasPrev, asOf)
	if err != nil {
		return Result{}, err
	}
	if !due {
		return Result{State: StateScheduled, Allocation: prev}, nil
	}

	// Due -> Rebalancing: weight on history truncated to the day before
	// asOf, so the new composition never sees asOf prices.
	symbols := make([]string, 0, len(universe))
	caps := make(map[string]float64, len(universe))
	for _, a := range universe {
		symbols = append(symbols, a.Symbol)
		caps[a.Symbol] = a.MarketCap
	}
	history, err := r.Prices.LoadHistories(symbols,
		asOf.AddDate(-historyLookback, 0, 0), asOf.AddDate(0, 0, -1))
	if err != nil {
		return Result{}, fmt.Errorf("load price history: %w", err)
	}

	weights, err := weighting.Compute(history, caps, cfg, asOf)
	if err != nil {
		if model.IsRecoverable(err) {
			log.Printf("[WARN] rebalance %s skipped: %v", asOf.Format("2006-01-02"), err)
			if recErr := r.Checkpoints.RecordSkippedRebalance(asOf, err.Error()); recErr != nil {
				log.Printf("[ERROR] record skipped rebalance: %v", recErr)
			}
			return Result{State: StateSkipped, Allocation: prev, SkipReason: err.Error()}, nil
		}
		return Result{}, err
	}

	alloc, err := model.NewAllocation(asOf, weights)
	if err != nil {
		// Weighting already validated the sum; a failure here is a bug.
		return Result{}, err
	}

	// Backup before any destructive rewrite of allocation state.
	if hasPrev && r.SnapshotPath != "" {
		if err := WriteSnapshot(r.SnapshotPath, prev); err != nil {
			log.Printf("[WARN] allocation snapshot failed: %v", err)
		}
	}

	if err := r.Allocs.SaveAllocation(alloc); err != nil {
		return Result{}, fmt.Errorf("commit allocation: %w", err)
	}
	log.Printf("[INFO] rebalance committed for %s: %d assets", asOf.Format("2006-01-02"), len(alloc.Weights))
	return Result{State: StateCommitted, Allocation: alloc}, nil
}

// isDue applies the frequency interval on the trading calendar: weekly is
// five trading days, monthly and quarterly advance by calendar months and
// land on the next trading day.
func (r *Rebalancer) isDue(freq model.RebalanceFrequency, last time.Time, hasLast bool, asOf time.Time) (bool, error) {
	if !hasLast {
		return true, nil
	}
	last = model.Day(last)

	switch freq {
	case model.FrequencyDaily:
		return last.Before(asOf), nil

	case model.FrequencyWeekly:
		dates, err := r.Prices.TradingDates(last.AddDate(0, 0, 1), asOf)
		if err != nil {
			return false, fmt.Errorf("trading dates: %w", err)
		}
		return len(dates) >= 5, nil

	case model.FrequencyMonthly:
		return r.calendarDue(last.AddDate(0, 1, 0), asOf)

	case model.FrequencyQuarterly:
		return r.calendarDue(last.AddDate(0, 3, 0), asOf)
	}
	return false, &model.ConfigurationError{Reason: fmt.Sprintf("unknown frequency %q", freq)}
}

// calendarDue reports whether the first trading day on or after boundary
// has been reached.
func (r *Rebalancer) calendarDue(boundary, asOf time.Time) (bool, error) {
	if asOf.Before(model.Day(boundary)) {
		return false, nil
	}
	dates, err := r.Prices.TradingDates(boundary, asOf)
	if err != nil {
		return false, fmt.Errorf("trading dates: %w", err)
	}
	return len(dates) > 0, nil
}
