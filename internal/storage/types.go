package storage

import (
	"errors"
	"time"
)

var (
	// ErrNoSnapshot is returned by LoadSnapshot before the first save.
	ErrNoSnapshot = errors.New("no snapshot")
	// ErrLocked means another process holds the store.
	ErrLocked = errors.New("storage is locked by another process")
)

// SnapshotTimestampLayout renders snapshot_timestamp ("2021-10-01 09:30").
const SnapshotTimestampLayout = "2006-01-02 15:04"

// Config configures storage.
type Config struct {
	Driver      string // "file" (default) or "sqlite"
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Snapshot is the state carried between runs.
//
// CurrentPeriod is nil when the active period slug was not numeric; it is
// written as JSON null.
type Snapshot struct {
	PeriodCount       int    `json:"period_count"`
	CurrentPeriod     *int   `json:"current_period"`
	SnapshotTimestamp string `json:"snapshot_timestamp"`
}

// NewSnapshot builds the snapshot for a run that finished at at.
func NewSnapshot(periodCount, currentPeriod int, hasCurrent bool, at time.Time) Snapshot {
	s := Snapshot{PeriodCount: periodCount, SnapshotTimestamp: at.Format(SnapshotTimestampLayout)}
	if hasCurrent {
		cp := currentPeriod
		s.CurrentPeriod = &cp
	}
	return s
}

// PreviousPeriod is the stored current_period, or 0 when absent.
func (s Snapshot) PreviousPeriod() int {
	if s.CurrentPeriod == nil {
		return 0
	}
	return *s.CurrentPeriod
}

// DeliveryRecord is one line of the delivery log.
type DeliveryRecord struct {
	At     time.Time `json:"at"`
	RunID  string    `json:"run_id"`
	Event  string    `json:"event"`
	Value1 string    `json:"value1"`
	Value2 string    `json:"value2"`
	Value3 string    `json:"value3"`
	Status int       `json:"status,omitempty"`
	DryRun bool      `json:"dry_run,omitempty"`
	Error  string    `json:"error,omitempty"`
	TookMS int64     `json:"took_ms"`
}
