package pipeline

import (
	"time"

	"IndexForge/internal/model"
	"IndexForge/internal/provider"
	"IndexForge/internal/store"
)

// EngineContext carries every collaborator a pipeline stage needs. It is
// passed explicitly so tests can substitute fakes for any of them.
type EngineContext struct {
	IndexID      string
	Universe     []model.Asset
	Benchmark    string
	Store        store.Store
	Provider     provider.Provider
	SnapshotPath string
	Now          func() time.Time
	// MetricWindows lists the trailing windows (trading days) recomputed
	// after each compounding pass.
	MetricWindows []int
}

// Symbols returns the universe symbols plus the benchmark.
func (c *EngineContext) Symbols() []string {
	syms := make([]string, 0, len(c.Universe)+1)
	for _, a := range c.Universe {
		syms = append(syms, a.Symbol)
	}
	if c.Benchmark != "" {
		syms = append(syms, c.Benchmark)
	}
	return syms
}

// UniverseSymbols returns only the basket constituents.
func (c *EngineContext) UniverseSymbols() []string {
	syms := make([]string, 0, len(c.Universe))
	for _, a := range c.Universe {
		syms = append(syms, a.Symbol)
	}
	return syms
}

// StageStatus records one stage outcome within a run.
type StageStatus struct {
	Stage  string
	OK     bool
	Detail string
}

// RunSummary reports what a pipeline run accomplished.
type RunSummary struct {
	RunID       string
	IndexID     string
	AsOf        time.Time
	Stages      []StageStatus
	Allocation  model.Allocation
	LatestValue model.IndexValue
	Rebalanced  bool
	SkipReason  string
}
