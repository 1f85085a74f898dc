// Package model defines the canonical data types shared across the engine.
package model

import "time"

// UsageEvent is one priced, attributable unit of CLI usage, produced by the
// normalizer from a single log line. Immutable after construction.
type UsageEvent struct {
	Timestamp        time.Time
	DateString       string // local-time YYYY-MM-DD bucket for daily grouping
	Model            string
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
	Cost             float64
	SessionID        string // "unknown" when the record carried none
	ProjectPath      string
	ProjectName      string
	RequestID        string
	MessageID        string
	MessageType      string
	SourceFile       string
}

// TotalTokens returns the sum across all four token kinds.
func (e *UsageEvent) TotalTokens() int64 {
	return e.InputTokens + e.OutputTokens + e.CacheWriteTokens + e.CacheReadTokens
}

// Cell is the finest persisted aggregation grain: one row per
// (day, model, project, session) combination. Any date-range or project
// query is answered by folding cells, so incremental merges stay
// commutative and idempotent.
type Cell struct {
	Day              string // YYYY-MM-DD
	Model            string
	Project          string
	ProjectPath      string
	SessionID        string
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
	Cost             float64
	Requests         int64
}

// CellKeyOf derives the cell an event accumulates into.
func CellKeyOf(e *UsageEvent) Cell {
	return Cell{
		Day:         e.DateString,
		Model:       e.Model,
		Project:     e.ProjectName,
		ProjectPath: e.ProjectPath,
		SessionID:   e.SessionID,
	}
}
