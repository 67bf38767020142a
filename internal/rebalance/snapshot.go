package rebalance

import (
	"encoding/json"
	"os"
	"time"

	"IndexForge/internal/model"
)

// snapshotFile is the on-disk backup of the current allocation, written
// before any destructive rewrite of allocation state.
type snapshotFile struct {
	TakenAt time.Time          `json:"taken_at"`
	Date    time.Time          `json:"date"`
	Weights map[string]float64 `json:"weights"`
}

// WriteSnapshot saves a backup of the allocation to path.
func WriteSnapshot(path string, a model.Allocation) error {
	data, err := json.MarshalIndent(snapshotFile{
		TakenAt: time.Now().UTC(),
		Date:    a.Date,
		Weights: a.Weights,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadSnapshot loads the last backup. Returns ok=false if none exists.
func ReadSnapshot(path string) (model.Allocation, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Allocation{}, false, nil
		}
		return model.Allocation{}, false, err
	}
	var f snapshotFile
	if err := json.Unmarshal(data, &f); err != nil {
		return model.Allocation{}, false, err
	}
	return model.Allocation{Date: model.Day(f.Date), Weights: f.Weights}, true, nil
}
