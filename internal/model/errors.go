package model

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when a refresh is requested for an index
// that already has a pipeline run holding the run-lock.
var ErrRunInProgress = errors.New("refresh already in progress for this index")

// ProviderError wraps a failure from the external market-data provider.
// Retryable errors (timeouts, 5xx, rate limits) are retried with backoff;
// everything else fails the fetch stage immediately.
type ProviderError struct {
	Op          string
	RateLimited bool
	Err         error
}

func (e *ProviderError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("provider %s: rate limited: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable reports whether the fetch may be attempted again.
func (e *ProviderError) Retryable() bool { return true }

// InsufficientDataError signals that a computation was skipped because the
// available history is too short. It is recoverable: callers keep the
// last-known-good state and record a skip.
type InsufficientDataError struct {
	What string
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need %d observations, got %d", e.What, e.Need, e.Got)
}

// ConfigurationError signals an unsatisfiable strategy configuration
// (e.g. min_weight * target_asset_count > 1). Fatal for the affected
// rebalance; the previous allocation is retained.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ConsistencyError signals an internal invariant violation (weights not
// summing to one, compounding producing NaN or a non-positive value).
// Never corrected silently: the run aborts and nothing is persisted.
type ConsistencyError struct {
	Reason string
}

func (e *ConsistencyError) Error() string {
	return "consistency error: " + e.Reason
}

// IsRecoverable reports whether err is one of the skip-and-report errors
// (configuration or insufficient data) rather than a fatal one.
func IsRecoverable(err error) bool {
	var cfgErr *ConfigurationError
	var dataErr *InsufficientDataError
	return errors.As(err, &cfgErr) || errors.As(err, &dataErr)
}
