package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"IndexForge/internal/model"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while the pipeline writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS assets (
			symbol     TEXT PRIMARY KEY,
			name       TEXT,
			sector     TEXT,
			market_cap REAL
		)`,

		`CREATE TABLE IF NOT EXISTS prices (
			symbol TEXT NOT NULL,
			date   INTEGER NOT NULL,
			close  REAL NOT NULL,
			volume REAL,
			PRIMARY KEY (symbol, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_date ON prices(date)`,

		`CREATE TABLE IF NOT EXISTS allocations (
			date   INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			weight REAL NOT NULL,
			PRIMARY KEY (date, symbol)
		)`,

		`CREATE TABLE IF NOT EXISTS index_values (
			date              INTEGER PRIMARY KEY,
			value             REAL NOT NULL,
			daily_return      REAL NOT NULL,
			cumulative_return REAL NOT NULL,
			stale             INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS strategy_configs (
			version            TEXT PRIMARY KEY,
			created_at         INTEGER NOT NULL,
			frequency          TEXT NOT NULL,
			method             TEXT NOT NULL,
			min_weight         REAL,
			max_weight         REAL,
			target_asset_count INTEGER,
			momentum_window    INTEGER,
			volatility_window  INTEGER,
			risk_free_rate     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_configs_created ON strategy_configs(created_at)`,

		`CREATE TABLE IF NOT EXISTS risk_metrics (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			computed_at  INTEGER NOT NULL,
			window_days  INTEGER NOT NULL,
			sharpe       REAL,
			sortino      REAL,
			max_drawdown REAL,
			var_95       REAL,
			var_99       REAL,
			beta         REAL,
			correlation  REAL,
			volatility   REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_window ON risk_metrics(window_days, computed_at)`,

		`CREATE TABLE IF NOT EXISTS refresh_runs (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			index_id  TEXT NOT NULL,
			stage     TEXT NOT NULL,
			status    TEXT NOT NULL,
			detail    TEXT,
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_run ON refresh_runs(run_id)`,

		`CREATE TABLE IF NOT EXISTS fetch_state (
			index_id   TEXT PRIMARY KEY,
			last_fetch INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS skipped_rebalances (
			date        INTEGER PRIMARY KEY,
			reason      TEXT,
			recorded_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func dayUnix(t time.Time) int64 { return model.Day(t).Unix() }

func unixDay(u int64) time.Time { return model.Day(time.Unix(u, 0).UTC()) }

// SeedAssets stores reference data for the asset universe, replacing rows
// for symbols already present.
func (s *SQLiteStore) SeedAssets(assets []model.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range assets {
		if _, err := s.db.Exec(
			`INSERT OR REPLACE INTO assets (symbol, name, sector, market_cap) VALUES (?,?,?,?)`,
			a.Symbol, a.Name, a.Sector, a.MarketCap); err != nil {
			return fmt.Errorf("seed asset %s: %w", a.Symbol, err)
		}
	}
	return nil
}

func (s *SQLiteStore) SavePrices(points []model.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save prices: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO prices (symbol, date, close, volume) VALUES (?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare save prices: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(p.Symbol, dayUnix(p.Date), p.Close, p.Volume); err != nil {
			return fmt.Errorf("insert price %s@%s: %w", p.Symbol, p.Date.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadHistory(symbol string, start, end time.Time) ([]model.PricePoint, error) {
	rows, err := s.db.Query(
		`SELECT symbol, date, close, volume FROM prices
		 WHERE symbol = ? AND date >= ? AND date <= ? ORDER BY date`,
		symbol, dayUnix(start), dayUnix(end))
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", symbol, err)
	}
	defer rows.Close()

	var points []model.PricePoint
	for rows.Next() {
		var p model.PricePoint
		var d int64
		if err := rows.Scan(&p.Symbol, &d, &p.Close, &p.Volume); err != nil {
			return nil, err
		}
		p.Date = unixDay(d)
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStore) LoadHistories(symbols []string, start, end time.Time) (map[string][]model.PricePoint, error) {
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

func (s *SQLiteStore) LastDate(symbol string) (time.Time, bool, error) {
	var d sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(date) FROM prices WHERE symbol = ?`, symbol).Scan(&d)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last date %s: %w", symbol, err)
	}
	if !d.Valid {
		return time.Time{}, false, nil
	}
	return unixDay(d.Int64), true, nil
}

func (s *SQLiteStore) TradingDates(start, end time.Time) ([]time.Time, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT date FROM prices WHERE date >= ? AND date <= ? ORDER BY date`,
		dayUnix(start), dayUnix(end))
	if err != nil {
		return nil, fmt.Errorf("trading dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d int64
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, unixDay(d))
	}
	return dates, rows.Err()
}

func (s *SQLiteStore) SaveAllocation(a model.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save allocation: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM allocations WHERE date = ?`, dayUnix(a.Date)); err != nil {
		return fmt.Errorf("clear allocation rows: %w", err)
	}
	for _, sym := range model.SortedSymbols(a.Weights) {
		if _, err := tx.Exec(
			`INSERT INTO allocations (date, symbol, weight) VALUES (?,?,?)`,
			dayUnix(a.Date), sym, a.Weights[sym]); err != nil {
			return fmt.Errorf("insert allocation row %s: %w", sym, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LatestAllocation() (model.Allocation, bool, error) {
	var d sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(date) FROM allocations`).Scan(&d); err != nil {
		return model.Allocation{}, false, fmt.Errorf("latest allocation: %w", err)
	}
	if !d.Valid {
		return model.Allocation{}, false, nil
	}
	return s.AllocationAt(unixDay(d.Int64))
}

func (s *SQLiteStore) AllocationAt(date time.Time) (model.Allocation, bool, error) {
	rows, err := s.db.Query(
		`SELECT symbol, weight FROM allocations WHERE date = ? ORDER BY symbol`, dayUnix(date))
	if err != nil {
		return model.Allocation{}, false, fmt.Errorf("allocation at %s: %w", date.Format("2006-01-02"), err)
	}
	defer rows.Close()

	weights := make(map[string]float64)
	for rows.Next() {
		var sym string
		var w float64
		if err := rows.Scan(&sym, &w); err != nil {
			return model.Allocation{}, false, err
		}
		weights[sym] = w
	}
	if err := rows.Err(); err != nil {
		return model.Allocation{}, false, err
	}
	if len(weights) == 0 {
		return model.Allocation{}, false, nil
	}
	return model.Allocation{Date: model.Day(date), Weights: weights}, true, nil
}

func (s *SQLiteStore) AllocationHistory(start, end time.Time) ([]model.Allocation, error) {
	rows, err := s.db.Query(
		`SELECT date, symbol, weight FROM allocations
		 WHERE date >= ? AND date <= ? ORDER BY date, symbol`,
		dayUnix(start), dayUnix(end))
	if err != nil {
		return nil, fmt.Errorf("allocation history: %w", err)
	}
	defer rows.Close()

	var allocs []model.Allocation
	var cur *model.Allocation
	for rows.Next() {
		var d int64
		var sym string
		var w float64
		if err := rows.Scan(&d, &sym, &w); err != nil {
			return nil, err
		}
		date := unixDay(d)
		if cur == nil || !cur.Date.Equal(date) {
			allocs = append(allocs, model.Allocation{Date: date, Weights: map[string]float64{}})
			cur = &allocs[len(allocs)-1]
		}
		cur.Weights[sym] = w
	}
	return allocs, rows.Err()
}

func (s *SQLiteStore) SaveIndexValues(values []model.IndexValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save index values: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO index_values (date, value, daily_return, cumulative_return, stale)
		 VALUES (?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare save index values: %w", err)
	}
	defer stmt.Close()

	for _, v := range values {
		stale := 0
		if v.Stale {
			stale = 1
		}
		if _, err := stmt.Exec(dayUnix(v.Date), v.Value, v.DailyReturn, v.CumulativeReturn, stale); err != nil {
			return fmt.Errorf("insert index value %s: %w", v.Date.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) IndexHistory(start, end time.Time) ([]model.IndexValue, error) {
	rows, err := s.db.Query(
		`SELECT date, value, daily_return, cumulative_return, stale FROM index_values
		 WHERE date >= ? AND date <= ? ORDER BY date`,
		dayUnix(start), dayUnix(end))
	if err != nil {
		return nil, fmt.Errorf("index history: %w", err)
	}
	defer rows.Close()

	var values []model.IndexValue
	for rows.Next() {
		var v model.IndexValue
		var d int64
		var stale int
		if err := rows.Scan(&d, &v.Value, &v.DailyReturn, &v.CumulativeReturn, &stale); err != nil {
			return nil, err
		}
		v.Date = unixDay(d)
		v.Stale = stale != 0
		values = append(values, v)
	}
	return values, rows.Err()
}

func (s *SQLiteStore) LatestIndexValue() (model.IndexValue, bool, error) {
	var v model.IndexValue
	var d int64
	var stale int
	err := s.db.QueryRow(
		`SELECT date, value, daily_return, cumulative_return, stale FROM index_values
		 ORDER BY date DESC LIMIT 1`).Scan(&d, &v.Value, &v.DailyReturn, &v.CumulativeReturn, &stale)
	if err == sql.ErrNoRows {
		return model.IndexValue{}, false, nil
	}
	if err != nil {
		return model.IndexValue{}, false, fmt.Errorf("latest index value: %w", err)
	}
	v.Date = unixDay(d)
	v.Stale = stale != 0
	return v, true, nil
}

func (s *SQLiteStore) SaveConfigVersion(c model.StrategyConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO strategy_configs
		 (version, created_at, frequency, method, min_weight, max_weight,
		  target_asset_count, momentum_window, volatility_window, risk_free_rate)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.Version.String(), c.CreatedAt.Unix(), string(c.Frequency), string(c.Method),
		c.MinWeight, c.MaxWeight, c.TargetAssetCount,
		c.MomentumWindow, c.VolatilityWindow, c.RiskFreeRate)
	if err != nil {
		return fmt.Errorf("save config version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ActiveConfig(asOf time.Time) (model.StrategyConfig, bool, error) {
	var c model.StrategyConfig
	var version string
	var created int64
	var freq, method string
	err := s.db.QueryRow(
		`SELECT version, created_at, frequency, method, min_weight, max_weight,
		        target_asset_count, momentum_window, volatility_window, risk_free_rate
		 FROM strategy_configs WHERE created_at <= ? ORDER BY created_at DESC LIMIT 1`,
		asOf.Unix()).Scan(&version, &created, &freq, &method,
		&c.MinWeight, &c.MaxWeight, &c.TargetAssetCount,
		&c.MomentumWindow, &c.VolatilityWindow, &c.RiskFreeRate)
	if err == sql.ErrNoRows {
		return model.StrategyConfig{}, false, nil
	}
	if err != nil {
		return model.StrategyConfig{}, false, fmt.Errorf("active config: %w", err)
	}
	v, err := uuid.Parse(version)
	if err != nil {
		return model.StrategyConfig{}, false, fmt.Errorf("parse config version: %w", err)
	}
	c.Version = v
	c.CreatedAt = time.Unix(created, 0).UTC()
	c.Frequency = model.RebalanceFrequency(freq)
	c.Method = model.WeightingMethod(method)
	return c, true, nil
}

func (s *SQLiteStore) SaveRiskMetrics(m model.RiskMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO risk_metrics
		 (computed_at, window_days, sharpe, sortino, max_drawdown, var_95, var_99, beta, correlation, volatility)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.ComputedAt.Unix(), m.WindowDays, m.Sharpe, m.Sortino, m.MaxDrawdown,
		m.VaR95, m.VaR99, m.Beta, m.Correlation, m.Volatility)
	if err != nil {
		return fmt.Errorf("save risk metrics: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestRiskMetrics(windowDays int) (model.RiskMetrics, bool, error) {
	var m model.RiskMetrics
	var computed int64
	err := s.db.QueryRow(
		`SELECT computed_at, window_days, sharpe, sortino, max_drawdown, var_95, var_99, beta, correlation, volatility
		 FROM risk_metrics WHERE window_days = ? ORDER BY computed_at DESC LIMIT 1`,
		windowDays).Scan(&computed, &m.WindowDays, &m.Sharpe, &m.Sortino, &m.MaxDrawdown,
		&m.VaR95, &m.VaR99, &m.Beta, &m.Correlation, &m.Volatility)
	if err == sql.ErrNoRows {
		return model.RiskMetrics{}, false, nil
	}
	if err != nil {
		return model.RiskMetrics{}, false, fmt.Errorf("latest risk metrics: %w", err)
	}
	m.ComputedAt = time.Unix(computed, 0).UTC()
	return m, true, nil
}

func (s *SQLiteStore) StartRun(runID uuid.UUID, indexID string, startedAt time.Time) error {
	return s.markStage(runID, indexID, "run", "started", "")
}

func (s *SQLiteStore) MarkStage(runID uuid.UUID, stage, status, detail string) error {
	return s.markStage(runID, "", stage, status, detail)
}

func (s *SQLiteStore) markStage(runID uuid.UUID, indexID, stage, status, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO refresh_runs (run_id, index_id, stage, status, detail, timestamp) VALUES (?,?,?,?,?,?)`,
		runID.String(), indexID, stage, status, detail, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("mark stage %s/%s: %w", stage, status, err)
	}
	return nil
}

func (s *SQLiteStore) SetLastFetch(indexID string, through time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO fetch_state (index_id, last_fetch) VALUES (?,?)`,
		indexID, dayUnix(through))
	if err != nil {
		return fmt.Errorf("set last fetch: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LastFetch(indexID string) (time.Time, bool, error) {
	var d int64
	err := s.db.QueryRow(`SELECT last_fetch FROM fetch_state WHERE index_id = ?`, indexID).Scan(&d)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last fetch: %w", err)
	}
	return unixDay(d), true, nil
}

func (s *SQLiteStore) RecordSkippedRebalance(date time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO skipped_rebalances (date, reason, recorded_at) VALUES (?,?,?)`,
		dayUnix(date), reason, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record skipped rebalance: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
