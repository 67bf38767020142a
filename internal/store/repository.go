package store

import (
	"time"

	"IndexForge/internal/model"

	"github.com/google/uuid"
)

// PriceRepository provides read/write access to the append-only price series.
// All reads return plain ordered slices; nothing loads lazily.
type PriceRepository interface {
	// SavePrices appends points, ignoring (symbol, date) pairs already stored.
	SavePrices(points []model.PricePoint) error
	LoadHistory(symbol string, start, end time.Time) ([]model.PricePoint, error)
	LoadHistories(symbols []string, start, end time.Time) (map[string][]model.PricePoint, error)
	// LastDate returns the most recent stored date for symbol, if any.
	LastDate(symbol string) (time.Time, bool, error)
	// TradingDates returns the distinct ordered dates with at least one price.
	TradingDates(start, end time.Time) ([]time.Time, error)
}

// AllocationRepository persists committed basket compositions. Save is
// atomic per date: the full row set for the date commits or nothing does.
type AllocationRepository interface {
	SaveAllocation(a model.Allocation) error
	LatestAllocation() (model.Allocation, bool, error)
	AllocationAt(date time.Time) (model.Allocation, bool, error)
	AllocationHistory(start, end time.Time) ([]model.Allocation, error)
}

// IndexRepository persists the derived index value series.
type IndexRepository interface {
	SaveIndexValues(values []model.IndexValue) error
	IndexHistory(start, end time.Time) ([]model.IndexValue, error)
	LatestIndexValue() (model.IndexValue, bool, error)
}

// ConfigRepository stores strategy config versions; versions are never
// overwritten so historical allocations stay reproducible.
type ConfigRepository interface {
	SaveConfigVersion(c model.StrategyConfig) error
	ActiveConfig(asOf time.Time) (model.StrategyConfig, bool, error)
}

// MetricsRepository stores atomic risk metric records.
type MetricsRepository interface {
	SaveRiskMetrics(m model.RiskMetrics) error
	LatestRiskMetrics(windowDays int) (model.RiskMetrics, bool, error)
}

// CheckpointRepository records pipeline run progress and fetch watermarks.
type CheckpointRepository interface {
	StartRun(runID uuid.UUID, indexID string, startedAt time.Time) error
	MarkStage(runID uuid.UUID, stage, status, detail string) error
	SetLastFetch(indexID string, through time.Time) error
	LastFetch(indexID string) (time.Time, bool, error)
	RecordSkippedRebalance(date time.Time, reason string) error
}

// Store bundles every repository over one backing database.
type Store interface {
	PriceRepository
	AllocationRepository
	IndexRepository
	ConfigRepository
	MetricsRepository
	CheckpointRepository
	Close() error
}
