package model

import "time"

// SyncMode selects between incremental and full ingestion passes.
type SyncMode string

const (
	SyncIncremental SyncMode = "incremental"
	SyncFull        SyncMode = "full"
)

// SyncState is the lifecycle state of a sync run.
type SyncState string

const (
	SyncIdle       SyncState = "idle"
	SyncPreparing  SyncState = "preparing"
	SyncScanning   SyncState = "scanning"
	SyncParsing    SyncState = "parsing"
	SyncValidating SyncState = "validating"
	SyncSyncing    SyncState = "syncing"
	SyncPaused     SyncState = "paused"
	SyncCompleted  SyncState = "completed"
	SyncFailed     SyncState = "failed"
	SyncCancelled  SyncState = "cancelled"
)

// Terminal reports whether the state ends a run.
func (s SyncState) Terminal() bool {
	return s == SyncCompleted || s == SyncFailed || s == SyncCancelled
}

// SyncRun is an observable snapshot of one ingestion pass.
type SyncRun struct {
	ID             string    `json:"id"`
	Mode           SyncMode  `json:"mode"`
	State          SyncState `json:"state"`
	Progress       float64   `json:"progress"` // 0.0-1.0 at file granularity
	ProcessedItems int       `json:"processed_items"`
	TotalItems     int       `json:"total_items"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	Retryable      bool      `json:"retryable,omitempty"`

	EventsIngested int `json:"events_ingested"`
	EventsDeduped  int `json:"events_deduped"`
	EventsFiltered int `json:"events_filtered"`
	ParseErrors    int `json:"parse_errors"`
	FileErrors     int `json:"file_errors"`
}
