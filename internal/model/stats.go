package model

// AggregateStatistics is the output of folding usage events: top-level totals
// plus per-model, per-day, and per-project breakdowns. Read-only to consumers.
type AggregateStatistics struct {
	TotalCost        float64
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
	TotalTokens      int64
	TotalSessions    int
	TotalRequests    int64
	CacheSavings     float64

	ByModel   []ModelStats
	ByDate    []DateStats
	ByProject []ProjectStats
}

// CostPerRequest returns the average cost per request, zero when empty.
func (s *AggregateStatistics) CostPerRequest() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return s.TotalCost / float64(s.TotalRequests)
}

// ModelStats holds aggregated metrics for a single model.
type ModelStats struct {
	Model            string
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
	Cost             float64
	Requests         int64
	SessionCount     int
}

// DateStats holds aggregated metrics for a single calendar day.
type DateStats struct {
	Date             string // YYYY-MM-DD
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
	Cost             float64
	Requests         int64
	SessionCount     int
}

// ProjectStats holds aggregated metrics for a single project.
type ProjectStats struct {
	Project          string
	ProjectPath      string
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
	Cost             float64
	Requests         int64
	SessionCount     int
}

// TotalTokens returns the summed token count for a model row.
func (m ModelStats) TotalTokens() int64 {
	return m.InputTokens + m.OutputTokens + m.CacheWriteTokens + m.CacheReadTokens
}

// TotalTokens returns the summed token count for a date row.
func (d DateStats) TotalTokens() int64 {
	return d.InputTokens + d.OutputTokens + d.CacheWriteTokens + d.CacheReadTokens
}

// TotalTokens returns the summed token count for a project row.
func (p ProjectStats) TotalTokens() int64 {
	return p.InputTokens + p.OutputTokens + p.CacheWriteTokens + p.CacheReadTokens
}
