package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RebalanceFrequency controls how often the basket composition is recomputed.
type RebalanceFrequency string

const (
	FrequencyDaily     RebalanceFrequency = "daily"
	FrequencyWeekly    RebalanceFrequency = "weekly"
	FrequencyMonthly   RebalanceFrequency = "monthly"
	FrequencyQuarterly RebalanceFrequency = "quarterly"
)

// WeightingMethod selects the weighting algorithm.
type WeightingMethod string

const (
	MethodEqual      WeightingMethod = "equal"
	MethodMomentum   WeightingMethod = "momentum"
	MethodMarketCap  WeightingMethod = "marketcap"
	MethodRiskParity WeightingMethod = "riskparity"
)

// StrategyConfig is one immutable version of the index strategy. Updates
// create a new version rather than mutating in place, so historical
// allocations stay reproducible against the config active at the time.
type StrategyConfig struct {
	Version          uuid.UUID          `yaml:"-"`
	CreatedAt        time.Time          `yaml:"-"`
	Frequency        RebalanceFrequency `yaml:"frequency"`
	Method           WeightingMethod    `yaml:"method"`
	MinWeight        float64            `yaml:"min_weight"`
	MaxWeight        float64            `yaml:"max_weight"`
	TargetAssetCount int                `yaml:"target_asset_count"`
	MomentumWindow   int                `yaml:"momentum_window"`   // trading days, default 90
	VolatilityWindow int                `yaml:"volatility_window"` // trading days, default 30
	RiskFreeRate     float64            `yaml:"risk_free_rate"`    // annualized, e.g. 0.02
}

// Validate checks that the configuration is satisfiable at all.
func (c StrategyConfig) Validate() error {
	switch c.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly:
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unknown frequency %q", c.Frequency)}
	}
	switch c.Method {
	case MethodEqual, MethodMomentum, MethodMarketCap, MethodRiskParity:
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unknown weighting method %q", c.Method)}
	}
	if c.TargetAssetCount <= 0 {
		return &ConfigurationError{Reason: "target_asset_count must be positive"}
	}
	if c.MinWeight < 0 || c.MaxWeight <= 0 || c.MaxWeight > 1 {
		return &ConfigurationError{Reason: "weight bounds must satisfy 0 <= min_weight, 0 < max_weight <= 1"}
	}
	if c.MinWeight > c.MaxWeight {
		return &ConfigurationError{Reason: "min_weight exceeds max_weight"}
	}
	if c.MinWeight*float64(c.TargetAssetCount) > 1+WeightTolerance {
		return &ConfigurationError{
			Reason: fmt.Sprintf("min_weight %.4f x target_asset_count %d exceeds 1.0", c.MinWeight, c.TargetAssetCount),
		}
	}
	if c.MaxWeight*float64(c.TargetAssetCount) < 1-WeightTolerance {
		return &ConfigurationError{
			Reason: fmt.Sprintf("max_weight %.4f x target_asset_count %d cannot reach 1.0", c.MaxWeight, c.TargetAssetCount),
		}
	}
	return nil
}

// WithDefaults fills unset windows and stamps a fresh version.
func (c StrategyConfig) WithDefaults(now time.Time) StrategyConfig {
	if c.MomentumWindow == 0 {
		c.MomentumWindow = 90
	}
	if c.VolatilityWindow == 0 {
		c.VolatilityWindow = 30
	}
	if c.Version == uuid.Nil {
		c.Version = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	return c
}
