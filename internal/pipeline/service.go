package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"IndexForge/internal/compound"
	"IndexForge/internal/model"

	"github.com/google/uuid"
)

// Query surface consumed by the surrounding application. Queries return the
// last successfully committed state plus a staleness indicator whenever any
// committed data exists, rather than an error.

// CurrentAllocation returns the latest committed basket composition.
func (o *Orchestrator) CurrentAllocation() (model.Allocation, error) {
	alloc, ok, err := o.Ctx.Store.LatestAllocation()
	if err != nil {
		return model.Allocation{}, fmt.Errorf("latest allocation: %w", err)
	}
	if !ok {
		return model.Allocation{}, &model.InsufficientDataError{What: "allocation", Need: 1, Got: 0}
	}
	return alloc, nil
}

// IndexHistory returns the committed index series between start and end.
func (o *Orchestrator) IndexHistory(start, end time.Time) ([]model.IndexValue, error) {
	return o.Ctx.Store.IndexHistory(start, end)
}

// Simulate replays compounded returns from start against amount.
func (o *Orchestrator) Simulate(amount float64, start time.Time, currency string) (model.SimulationResult, error) {
	series, err := o.Ctx.Store.IndexHistory(time.Time{}, o.Ctx.Now())
	if err != nil {
		return model.SimulationResult{}, fmt.Errorf("index history: %w", err)
	}
	return compound.Simulate(series, amount, start, currency, o.Ctx.Now())
}

// RiskMetrics returns the latest metrics record for the window plus whether
// it predates the latest index value (stale).
func (o *Orchestrator) RiskMetrics(windowDays int) (model.RiskMetrics, bool, error) {
	m, ok, err := o.Ctx.Store.LatestRiskMetrics(windowDays)
	if err != nil {
		return model.RiskMetrics{}, false, fmt.Errorf("latest risk metrics: %w", err)
	}
	if !ok {
		return model.RiskMetrics{}, false, &model.InsufficientDataError{What: "risk metrics", Need: 1, Got: 0}
	}
	stale := false
	if latest, okV, _ := o.Ctx.Store.LatestIndexValue(); okV {
		stale = m.ComputedAt.Before(latest.Date)
	}
	return m, stale, nil
}

// TriggerRefresh runs the full pipeline for today. Idempotent: re-running
// on an already-committed date leaves committed state untouched.
func (o *Orchestrator) TriggerRefresh(ctx context.Context) (*RunSummary, error) {
	return o.Run(ctx, o.Ctx.Now())
}

// TriggerRebalance runs only the rebalance, compound and risk-metrics
// stages against already-stored prices. A no-op when today's allocation is
// already committed.
func (o *Orchestrator) TriggerRebalance(ctx context.Context) (*RunSummary, error) {
	if !o.runLock.TryLock() {
		return nil, model.ErrRunInProgress
	}
	defer o.runLock.Unlock()

	runID := uuid.New()
	asOf := model.Day(o.Ctx.Now())
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

	stages := []struct {
		name string
		fn   stageFn
	}{
		{"rebalance", o.stageRebalance},
		{"compound", o.stageCompound},
		{"risk-metrics", o.stageMetrics},
	}
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			o.markStage(runID, stage.name, "cancelled", err.Error())
			return st.summary, err
		}
		if err := stage.fn(ctx, st); err != nil {
			o.markStage(runID, stage.name, "failed", err.Error())
			st.summary.Stages = append(st.summary.Stages, StageStatus{Stage: stage.name, Detail: err.Error()})
			log.Printf("[ERROR] rebalance run %s: stage %s failed: %v", runID, stage.name, err)
			return st.summary, fmt.Errorf("stage %s: %w", stage.name, err)
		}
		o.markStage(runID, stage.name, "ok", "")
		st.summary.Stages = append(st.summary.Stages, StageStatus{Stage: stage.name, OK: true})
	}
	return st.summary, nil
}
