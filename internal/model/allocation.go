package model

import (
	"fmt"
	"math"
	"time"
)

// WeightTolerance is the accepted deviation of a weight sum from 1.0.
const WeightTolerance = 1e-6

// Allocation is the basket composition committed on one date. Weights over
// all held assets sum to 1.0 within WeightTolerance; an asset with weight 0
// is not held and never appears in the map.
type Allocation struct {
	Date    time.Time
	Weights map[string]float64
}

// NewAllocation validates weights and returns an immutable Allocation.
// Zero-weight entries are dropped; a sum off by more than WeightTolerance
// or a weight outside [0,1] is a ConsistencyError.
func NewAllocation(date time.Time, weights map[string]float64) (Allocation, error) {
	cleaned := make(map[string]float64, len(weights))
	sum := 0.0
	for _, sym := range SortedSymbols(weights) {
		w := weights[sym]
		if w == 0 {
			continue
		}
		if w < 0 || w > 1 {
			return Allocation{}, &ConsistencyError{
				Reason: fmt.Sprintf("weight for %s out of [0,1]: %g", sym, w),
			}
		}
		cleaned[sym] = w
		sum += w
	}
	if len(cleaned) == 0 {
		return Allocation{}, &ConsistencyError{Reason: "allocation holds no assets"}
	}
	if math.Abs(sum-1.0) > WeightTolerance {
		return Allocation{}, &ConsistencyError{
			Reason: fmt.Sprintf("weights sum to %.9f, want 1.0 ± %g", sum, WeightTolerance),
		}
	}
	return Allocation{Date: Day(date), Weights: cleaned}, nil
}

// Clone returns a deep copy so callers cannot mutate committed state.
func (a Allocation) Clone() Allocation {
	w := make(map[string]float64, len(a.Weights))
	for k, v := range a.Weights {
		w[k] = v
	}
	return Allocation{Date: a.Date, Weights: w}
}
