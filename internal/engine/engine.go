// Package engine is the top-level facade: it wires the store, pricing,
// aggregation, cache, and sync orchestration behind the query and
// sync-control surface consumed by presentation layers.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ccstats/internal/cache"
	"ccstats/internal/config"
	"ccstats/internal/ingest"
	"ccstats/internal/model"
	"ccstats/internal/pipeline"
	"ccstats/internal/pricing"
	"ccstats/internal/source"
	"ccstats/internal/store"
)

// Options configures an engine instance.
type Options struct {
	Config   config.Config
	DBPath   string // defaults to the config cache location
	LogDir   string // defaults to config/env resolution
	Logger   *zap.Logger
	Progress ingest.ProgressFunc
}

// Engine owns the ingestion and query pipeline for one log-source scope.
type Engine struct {
	cfg    config.Config
	logDir string
	store  *store.Store
	rates  *pricing.Table
	agg    *pipeline.Aggregator
	cache  *cache.Controller
	orch   *ingest.Orchestrator
	logger *zap.Logger
}

// New opens the store and wires all engine components.
func New(opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = config.DBPath()
	}
	logDir := opts.LogDir
	if logDir == "" {
		logDir = config.LogDir(opts.Config)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening aggregate store: %w", err)
	}

	rates := pricing.NewTable(opts.Config.Pricing, logger)
	cc := cache.NewController(opts.Config.Cache.TTL(), opts.Config.Cache.StaleWindow(), logger)
	norm := source.NewNormalizer(rates, logger)
	orch := ingest.NewOrchestrator(ingest.Options{
		LogDir:    logDir,
		BatchSize: opts.Config.Sync.BatchSize,
		Progress:  opts.Progress,
	}, st, norm, cc, logger)

	return &Engine{
		cfg:    opts.Config,
		logDir: logDir,
		store:  st,
		rates:  rates,
		agg:    pipeline.New(rates),
		cache:  cc,
		orch:   orch,
		logger: logger,
	}, nil
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}

// LogDir returns the resolved log directory.
func (e *Engine) LogDir() string {
	return e.logDir
}

// DayString formats an instant as the local-time day bucket, empty for the
// zero time (open range bound).
func DayString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02")
}

// GetStatistics returns aggregates for the date range and optional project
// filter, always paired with the cache freshness status. "No data yet" is
// not an error: it yields empty statistics with the Empty status.
func (e *Engine) GetStatistics(from, to time.Time, project string) (model.AggregateStatistics, cache.Status, error) {
	return e.getStatistics(from, to, project, false)
}

// RefreshStatistics forces a recompute for the query, moving its cache
// entry through Loading regardless of current freshness.
func (e *Engine) RefreshStatistics(from, to time.Time, project string) (model.AggregateStatistics, cache.Status, error) {
	return e.getStatistics(from, to, project, true)
}

func (e *Engine) getStatistics(from, to time.Time, project string, force bool) (model.AggregateStatistics, cache.Status, error) {
	fromDay, toDay := DayString(from), DayString(to)
	key := cache.QueryKey(fromDay, toDay, project)

	entry, status := e.cache.Lookup(key)
	if !force {
		if status.Servable() {
			return entry.Stats, status, nil
		}
		if status == cache.StatusExpired {
			// Expired data is still shown, but flagged so the consumer
			// can prompt a refresh. Only an explicit refresh recomputes.
			return entry.Stats, cache.StatusExpired, nil
		}
	}

	e.cache.BeginLoad(key, fromDay, toDay, project)

	cells, err := e.store.QueryCells(fromDay, toDay, project)
	if err != nil {
		e.cache.Fail(key, err)
		if !entry.CacheTime.IsZero() {
			// Serve the last known-good aggregate, flagged stale.
			return entry.Stats, cache.StatusStale, nil
		}
		return model.AggregateStatistics{}, cache.StatusError, fmt.Errorf("reading aggregates: %w", err)
	}

	if len(cells) == 0 {
		e.cache.Discard(key)
		return model.AggregateStatistics{}, cache.StatusEmpty, nil
	}

	stats := e.agg.Fold(cells)
	e.cache.Complete(key, stats)
	return stats, cache.StatusFresh, nil
}

// PerformIncrementalSync starts a background incremental pass.
func (e *Engine) PerformIncrementalSync(ctx context.Context) (model.SyncRun, error) {
	return e.orch.Start(ctx, model.SyncIncremental)
}

// PerformFullSync starts a background full rebuild: dedup index and
// aggregates are cleared, then everything is rescanned.
func (e *Engine) PerformFullSync(ctx context.Context) (model.SyncRun, error) {
	return e.orch.Start(ctx, model.SyncFull)
}

// RunSync performs a sync synchronously and returns the final run state.
func (e *Engine) RunSync(ctx context.Context, mode model.SyncMode) (model.SyncRun, error) {
	return e.orch.Run(ctx, mode)
}

// PauseSync requests a cooperative pause of the active run.
func (e *Engine) PauseSync() error { return e.orch.Pause() }

// ResumeSync resumes a paused run.
func (e *Engine) ResumeSync() error { return e.orch.Resume() }

// CancelSync cancels the active run, keeping work committed so far.
func (e *Engine) CancelSync() error { return e.orch.Cancel() }

// SyncStatus returns a snapshot of the most recent sync run.
func (e *Engine) SyncStatus() model.SyncRun {
	return e.orch.Current()
}

// CacheSnapshot returns the state of every cache entry.
func (e *Engine) CacheSnapshot() []cache.Entry {
	return e.cache.Snapshot()
}

// NewWatcher returns a log-directory watcher that triggers the callback
// when session files change.
func (e *Engine) NewWatcher(debounce time.Duration, onChange func()) *ingest.Watcher {
	return ingest.NewWatcher(e.logDir, debounce, onChange, e.logger)
}
