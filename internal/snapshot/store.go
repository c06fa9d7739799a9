// Package snapshot persists per-instrument open-interest series used
// as last-resort history when no exchange serves OI history.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"derivflow/logger"
	"derivflow/models"
)

// DefaultCap bounds how many daily entries a snapshot file retains.
const DefaultCap = 200

// Store reads and writes oi_series_<id>.json files under one directory.
type Store struct {
	dir string
	cap int
	log *logger.Log
}

func NewStore(dir string, cap int) *Store {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Store{dir: dir, cap: cap, log: logger.GetLogger()}
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, fmt.Sprintf("oi_series_%s.json", id))
}

// Load returns the persisted series for an instrument. A missing or
// unparseable file degrades to an empty series; corruption is never
// fatal because the series only feeds a last-resort adapter.
func (s *Store) Load(id string) []models.OIPoint {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.WithComponent("snapshot_store").WithError(err).WithFields(logger.Fields{"instrument": id}).Warn("snapshot unreadable, treating as empty")
		}
		return nil
	}
	var series []models.OIPoint
	if err := json.Unmarshal(data, &series); err != nil {
		s.log.WithComponent("snapshot_store").WithError(err).WithFields(logger.Fields{"instrument": id}).Warn("snapshot corrupt, treating as empty")
		return nil
	}
	return series
}

// Save truncates the series to the most recent cap entries and
// replaces the file's entire contents.
func (s *Store) Save(id string, series []models.OIPoint) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if len(series) > s.cap {
		series = series[len(series)-s.cap:]
	}
	data, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	logger.IncrementSnapshotWrite(len(data))
	return nil
}

// Merge folds a current reading into a series: a reading for a date
// already present replaces that entry, anything else is appended.
func Merge(series []models.OIPoint, cur models.OIPoint) []models.OIPoint {
	if n := len(series); n > 0 && series[n-1].Date == cur.Date {
		series[n-1] = cur
		return series
	}
	return append(series, cur)
}
