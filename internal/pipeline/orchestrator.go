// Package pipeline coordinates one refresh run:
// fetch -> persist -> rebalance -> compound -> risk-metrics.
// Stages are checkpointed; a failure stops later stages but never rolls
// back earlier successful ones.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"IndexForge/internal/compound"
	"IndexForge/internal/model"
	"IndexForge/internal/rebalance"
	"IndexForge/internal/risk"

	"github.com/google/uuid"
)

// defaultLookback is the fetch window used when no previous successful
// fetch is recorded.
const defaultLookback = 730 // days, two years

// minLookback is the floor the fetch window shrinks to under provider
// rate limits before the run gives up.
const minLookback = 5 // days

// Orchestrator executes refresh runs for one index. Runs for the same
// index are mutually exclusive; independent indices use independent
// orchestrators and may run concurrently.
type Orchestrator struct {
	Ctx EngineContext

	runLock sync.Mutex
}

// stageFn executes one stage against the shared run state.
type stageFn func(ctx context.Context, st *runState) error

type runState struct {
	asOf    time.Time
	fetched map[string][]model.PricePoint
	summary *RunSummary
}

// Run executes the full pipeline for asOf. A concurrent run for the same
// index returns model.ErrRunInProgress. Cancellation is honored between
// stages, never mid-stage, so no stage leaves partial writes.
func (o *Orchestrator) Run(ctx context.Context, asOf time.Time) (*RunSummary, error) {
	if !o.runLock.TryLock() {
		return nil, model.ErrRunInProgress
	}
	defer o.runLock.Unlock()

	runID := uuid.New()
	asOf = model.Day(asOf)
	st := &runState{
		asOf: asOf,
		summary: &RunSummary{
			RunID:   runID.String(),
			IndexID: o.Ctx.IndexID,
			AsOf:    asOf,
		},
	}

	if err := o.Ctx.Store.StartRun(runID, o.Ctx.IndexID, o.Ctx.Now()); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	log.Printf("[INFO] refresh run %s started for index %s (as of %s)",
		runID, o.Ctx.IndexID, asOf.Format("2006-01-02"))

	stages := []struct {
		name string
		fn   stageFn
	}{
		{"fetch", o.stageFetch},
		{"persist", o.stagePersist},
		{"rebalance", o.stageRebalance},
		{"compound", o.stageCompound},
		{"risk-metrics", o.stageMetrics},
	}

	for _, stage := range stages {
		// Checkpoint boundary: the only place a run may be cancelled.
		if err := ctx.Err(); err != nil {
			o.markStage(runID, stage.name, "cancelled", err.Error())
			return st.summary, err
		}
		if err := stage.fn(ctx, st); err != nil {
			o.markStage(runID, stage.name, "failed", err.Error())
			st.summary.Stages = append(st.summary.Stages, StageStatus{Stage: stage.name, Detail: err.Error()})
			log.Printf("[ERROR] refresh run %s: stage %s failed: %v", runID, stage.name, err)
			// Earlier stages stay committed; nothing is rolled back.
			return st.summary, fmt.Errorf("stage %s: %w", stage.name, err)
		}
		o.markStage(runID, stage.name, "ok", "")
		st.summary.Stages = append(st.summary.Stages, StageStatus{Stage: stage.name, OK: true})
	}

	log.Printf("[INFO] refresh run %s completed", runID)
	return st.summary, nil
}

func (o *Orchestrator) markStage(runID uuid.UUID, stage, status, detail string) {
	if err := o.Ctx.Store.MarkStage(runID, stage, status, detail); err != nil {
		log.Printf("[ERROR] mark stage %s: %v", stage, err)
	}
}

// stageFetch pulls the incremental window since the last successful fetch.
// Under rate limits the lookback halves (floor minLookback days) instead of
// aborting the run outright.
func (o *Orchestrator) stageFetch(ctx context.Context, st *runState) error {
	lookback := defaultLookback
	if last, ok, err := o.Ctx.Store.LastFetch(o.Ctx.IndexID); err != nil {
		return fmt.Errorf("last fetch watermark: %w", err)
	} else if ok {
		// One day of overlap so a partially stored day is filled in.
		gap := int(st.asOf.Sub(last).Hours()/24) + 1
		if gap < lookback {
			lookback = gap
		}
	}
	if lookback < minLookback {
		lookback = minLookback
	}

	for {
		start := st.asOf.AddDate(0, 0, -lookback)
		rows, err := o.Ctx.Provider.FetchTimeSeries(ctx, o.Ctx.Symbols(), start, st.asOf)
		if err == nil {
			st.fetched = rows
			return nil
		}
		var provErr *model.ProviderError
		if !errors.As(err, &provErr) || !provErr.RateLimited || lookback/2 < minLookback {
			return err
		}
		lookback /= 2
		log.Printf("[WARN] provider rate limited, shrinking lookback to %d days", lookback)
	}
}

func (o *Orchestrator) stagePersist(_ context.Context, st *runState) error {
	total := 0
	for _, rows := range st.fetched {
		total += len(rows)
	}
	points := make([]model.PricePoint, 0, total)
	for _, sym := range model.SortedSymbols(st.fetched) {
		points = append(points, st.fetched[sym]...)
	}
	if err := o.Ctx.Store.SavePrices(points); err != nil {
		return fmt.Errorf("save prices: %w", err)
	}
	if err := o.Ctx.Store.SetLastFetch(o.Ctx.IndexID, st.asOf); err != nil {
		return fmt.Errorf("advance fetch watermark: %w", err)
	}
	log.Printf("[INFO] persisted %d price rows", total)
	return nil
}

func (o *Orchestrator) stageRebalance(_ context.Context, st *runState) error {
	cfg, ok, err := o.Ctx.Store.ActiveConfig(st.asOf)
	if err != nil {
		return fmt.Errorf("active config: %w", err)
	}
	if !ok {
		return &model.ConfigurationError{Reason: "no strategy config active for this date"}
	}

	reb := &rebalance.Rebalancer{
		Prices:       o.Ctx.Store,
		Allocs:       o.Ctx.Store,
		Checkpoints:  o.Ctx.Store,
		SnapshotPath: o.Ctx.SnapshotPath,
	}
	res, err := reb.Run(cfg, o.Ctx.Universe, st.asOf)
	if err != nil {
		return err
	}
	st.summary.Allocation = res.Allocation
	st.summary.Rebalanced = res.State == rebalance.StateCommitted && !res.AlreadyCommitted
	st.summary.SkipReason = res.SkipReason
	return nil
}

func (o *Orchestrator) stageCompound(_ context.Context, st *runState) error {
	allocs, err := o.Ctx.Store.AllocationHistory(time.Time{}, st.asOf)
	if err != nil {
		return fmt.Errorf("allocation history: %w", err)
	}
	if len(allocs) == 0 {
		// First runs may legitimately have no committed allocation yet.
		log.Println("[WARN] no allocations committed, skipping compounding")
		return nil
	}

	history, err := o.Ctx.Store.LoadHistories(o.Ctx.UniverseSymbols(), allocs[0].Date, st.asOf)
	if err != nil {
		return fmt.Errorf("load price history: %w", err)
	}

	values, err := compound.Compound(allocs, history, model.IndexBase)
	if err != nil {
		// A ConsistencyError aborts here with nothing persisted.
		return err
	}
	if err := o.Ctx.Store.SaveIndexValues(values); err != nil {
		return fmt.Errorf("save index values: %w", err)
	}
	st.summary.LatestValue = values[len(values)-1]
	log.Printf("[INFO] compounded %d index values, latest %.4f",
		len(values), values[len(values)-1].Value)
	return nil
}

func (o *Orchestrator) stageMetrics(_ context.Context, st *runState) error {
	values, err := o.Ctx.Store.IndexHistory(time.Time{}, st.asOf)
	if err != nil {
		return fmt.Errorf("index history: %w", err)
	}
	returns := risk.DailyReturns(values)
	if len(returns) == 0 {
		log.Println("[WARN] no index returns yet, skipping risk metrics")
		return nil
	}

	benchmark, err := o.benchmarkReturns(st.asOf)
	if err != nil {
		return err
	}

	cfg, _, err := o.Ctx.Store.ActiveConfig(st.asOf)
	if err != nil {
		return fmt.Errorf("active config: %w", err)
	}

	for _, window := range o.Ctx.MetricWindows {
		m, err := risk.Calculate(returns, benchmark, window, cfg.RiskFreeRate, o.Ctx.Now())
		if err != nil {
			if model.IsRecoverable(err) {
				log.Printf("[WARN] %d-day metrics skipped: %v", window, err)
				continue
			}
			return err
		}
		if err := o.Ctx.Store.SaveRiskMetrics(m); err != nil {
			return fmt.Errorf("save %d-day metrics: %w", window, err)
		}
	}
	return nil
}

func (o *Orchestrator) benchmarkReturns(asOf time.Time) ([]float64, error) {
	if o.Ctx.Benchmark == "" {
		return nil, nil
	}
	series, err := o.Ctx.Store.LoadHistory(o.Ctx.Benchmark, time.Time{}, asOf)
	if err != nil {
		return nil, fmt.Errorf("load benchmark history: %w", err)
	}
	if len(series) < 2 {
		return nil, nil
	}
	returns := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		returns = append(returns, series[i].Close/series[i-1].Close-1)
	}
	return returns, nil
}
