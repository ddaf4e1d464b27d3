package recorder

import (
	"time"

	"RialLedger/internal/model"
)

// RunEvent describes one finished update run.
type RunEvent struct {
	ID         string
	Mode       string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
	Pages      int
	Failures   int
	Fetched    int
	New        int
	Dropped    int
	StopReason string
	BaseTotal  int
	FirstDate  string
	LastDate   string
	Err        string
	Warnings   []model.Warning
}

// RunInfo is a journaled run as read back from storage.
type RunInfo struct {
	ID         string
	Mode       string
	FinishedAt time.Time
	New        int
	BaseTotal  int
	LastDate   string
	Err        string
	Warnings   int
}

// Recorder persists the history of update runs.
type Recorder interface {
	RecordRun(evt *RunEvent) error
	LastRun() (*RunInfo, error)
	Close() error
}
