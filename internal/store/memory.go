package store

import (
	"sort"
	"sync"
	"time"

	"IndexForge/internal/model"

	"github.com/google/uuid"
)

// MemoryStore is a fully functional in-memory Store, used by tests and when
// no sqlite path is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	prices    map[string][]model.PricePoint // sorted by date
	allocs    map[int64]model.Allocation    // keyed by day unix
	values    map[int64]model.IndexValue
	configs   []model.StrategyConfig // sorted by CreatedAt
	metrics   []model.RiskMetrics
	stages    []StageRecord
	lastFetch map[string]time.Time
	skips     map[int64]string
}

// StageRecord is one checkpoint entry, kept for inspection in tests.
type StageRecord struct {
	RunID  uuid.UUID
	Stage  string
	Status string
	Detail string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prices:    make(map[string][]model.PricePoint),
		allocs:    make(map[int64]model.Allocation),
		values:    make(map[int64]model.IndexValue),
		lastFetch: make(map[string]time.Time),
		skips:     make(map[int64]string),
	}
}

func (s *MemoryStore) SavePrices(points []model.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		p.Date = model.Day(p.Date)
		series := s.prices[p.Symbol]
		dup := false
		for _, q := range series {
			if q.Date.Equal(p.Date) {
				dup = true // append-only: existing rows win
				break
			}
		}
		if !dup {
			series = append(series, p)
		}
		sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
		s.prices[p.Symbol] = series
	}
	return nil
}

func (s *MemoryStore) LoadHistory(symbol string, start, end time.Time) ([]model.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.PricePoint
	for _, p := range s.prices[symbol] {
		if p.Date.Before(model.Day(start)) || p.Date.After(model.Day(end)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *MemoryStore) LoadHistories(symbols []string, start, end time.Time) (map[string][]model.PricePoint, error) {
	out := make(map[string][]model.PricePoint, len(symbols))
	for _, sym := range symbols {
		points, err := s.LoadHistory(sym, start, end)
		if err != nil {
			return nil, err
		}
		out[sym] = points
	}
	return out, nil
}

func (s *MemoryStore) LastDate(symbol string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.prices[symbol]
	if len(series) == 0 {
		return time.Time{}, false, nil
	}
	return series[len(series)-1].Date, true, nil
}

func (s *MemoryStore) TradingDates(start, end time.Time) ([]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[int64]time.Time)
	for _, series := range s.prices {
		for _, p := range series {
			if p.Date.Before(model.Day(start)) || p.Date.After(model.Day(end)) {
				continue
			}
			seen[p.Date.Unix()] = p.Date
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (s *MemoryStore) SaveAllocation(a model.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allocs[model.Day(a.Date).Unix()] = a.Clone()
	return nil
}

func (s *MemoryStore) LatestAllocation() (model.Allocation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best int64 = -1
	for k := range s.allocs {
		if k > best {
			best = k
		}
	}
	if best < 0 {
		return model.Allocation{}, false, nil
	}
	return s.allocs[best].Clone(), true, nil
}

func (s *MemoryStore) AllocationAt(date time.Time) (model.Allocation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.allocs[model.Day(date).Unix()]
	if !ok {
		return model.Allocation{}, false, nil
	}
	return a.Clone(), true, nil
}

func (s *MemoryStore) AllocationHistory(start, end time.Time) ([]model.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Allocation
	for k, a := range s.allocs {
		if k < model.Day(start).Unix() || k > model.Day(end).Unix() {
			continue
		}
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryStore) SaveIndexValues(values []model.IndexValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range values {
		v.Date = model.Day(v.Date)
		s.values[v.Date.Unix()] = v
	}
	return nil
}

func (s *MemoryStore) IndexHistory(start, end time.Time) ([]model.IndexValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.IndexValue
	for k, v := range s.values {
		if k < model.Day(start).Unix() || k > model.Day(end).Unix() {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *MemoryStore) LatestIndexValue() (model.IndexValue, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best int64 = -1
	for k := range s.values {
		if k > best {
			best = k
		}
	}
	if best < 0 {
		return model.IndexValue{}, false, nil
	}
	return s.values[best], true, nil
}

func (s *MemoryStore) SaveConfigVersion(c model.StrategyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs = append(s.configs, c)
	sort.Slice(s.configs, func(i, j int) bool { return s.configs[i].CreatedAt.Before(s.configs[j].CreatedAt) })
	return nil
}

func (s *MemoryStore) ActiveConfig(asOf time.Time) (model.StrategyConfig, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.configs) - 1; i >= 0; i-- {
		if !s.configs[i].CreatedAt.After(asOf) {
			return s.configs[i], true, nil
		}
	}
	return model.StrategyConfig{}, false, nil
}

func (s *MemoryStore) SaveRiskMetrics(m model.RiskMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
	return nil
}

func (s *MemoryStore) LatestRiskMetrics(windowDays int) (model.RiskMetrics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.metrics) - 1; i >= 0; i-- {
		if s.metrics[i].WindowDays == windowDays {
			return s.metrics[i], true, nil
		}
	}
	return model.RiskMetrics{}, false, nil
}

func (s *MemoryStore) StartRun(runID uuid.UUID, indexID string, startedAt time.Time) error {
	return s.MarkStage(runID, "run", "started", indexID)
}

func (s *MemoryStore) MarkStage(runID uuid.UUID, stage, status, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = append(s.stages, StageRecord{RunID: runID, Stage: stage, Status: status, Detail: detail})
	return nil
}

// Stages returns a copy of all recorded checkpoints.
func (s *MemoryStore) Stages() []StageRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StageRecord, len(s.stages))
	copy(out, s.stages)
	return out
}

func (s *MemoryStore) SetLastFetch(indexID string, through time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFetch[indexID] = model.Day(through)
	return nil
}

func (s *MemoryStore) LastFetch(indexID string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastFetch[indexID]
	return t, ok, nil
}

func (s *MemoryStore) RecordSkippedRebalance(date time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skips[model.Day(date).Unix()] = reason
	return nil
}

// SkippedRebalances returns recorded skip reasons keyed by date.
func (s *MemoryStore) SkippedRebalances() map[time.Time]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[time.Time]string, len(s.skips))
	for k, v := range s.skips {
		out[time.Unix(k, 0).UTC()] = v
	}
	return out
}

func (s *MemoryStore) Close() error { return nil }
