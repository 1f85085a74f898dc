// Package ingest drives incremental and full ingestion passes over the log
// directory, coordinating the decoder, normalizer, dedup index, aggregate
// store, and cache controller.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ccstats/internal/cache"
	"ccstats/internal/dedup"
	"ccstats/internal/model"
	"ccstats/internal/source"
	"ccstats/internal/store"
)

// ErrSyncActive is returned when a sync is requested while another run is
// in progress for the same scope. Concurrent syncs are rejected by design,
// not interleaved.
var ErrSyncActive = errors.New("a sync run is already active")

// ErrNoActiveSync is returned by control operations when no run is active.
var ErrNoActiveSync = errors.New("no sync run is active")

var errCancelled = errors.New("sync cancelled")

// ProgressFunc is called as files are processed.
type ProgressFunc func(current, total int)

// Options configures an orchestrator.
type Options struct {
	LogDir    string
	BatchSize int // files committed between pause/cancel checkpoints
	Progress  ProgressFunc
}

// Orchestrator owns the dedup index and persisted aggregates during an
// active run. At most one run per log-source scope is active at a time.
type Orchestrator struct {
	opts   Options
	store  *store.Store
	norm   *source.Normalizer
	cache  *cache.Controller
	logger *zap.Logger

	mu         sync.Mutex
	active     bool
	run        model.SyncRun
	cancelFn   context.CancelFunc
	paused     bool
	pausedFrom model.SyncState
	resumeCh   chan struct{}
	doneCh     chan struct{}
}

// NewOrchestrator wires an orchestrator. The cache controller may be nil
// when no query cache needs invalidation (e.g. one-shot CLI runs).
func NewOrchestrator(opts Options, st *store.Store, norm *source.Normalizer, cc *cache.Controller, logger *zap.Logger) *Orchestrator {
	if opts.BatchSize < 1 {
		opts.BatchSize = 25
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		opts:   opts,
		store:  st,
		norm:   norm,
		cache:  cc,
		logger: logger,
		run:    model.SyncRun{State: model.SyncIdle},
	}
}

// Current returns a snapshot of the most recent run.
func (o *Orchestrator) Current() model.SyncRun {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run
}

// Start launches a sync run in the background. It fails fast with
// ErrSyncActive when a run is already in progress.
func (o *Orchestrator) Start(ctx context.Context, mode model.SyncMode) (model.SyncRun, error) {
	o.mu.Lock()
	if o.active {
		run := o.run
		o.mu.Unlock()
		return run, ErrSyncActive
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.active = true
	o.cancelFn = cancel
	o.paused = false
	o.resumeCh = nil
	o.doneCh = make(chan struct{})
	o.run = model.SyncRun{
		ID:        uuid.NewString(),
		Mode:      mode,
		State:     model.SyncPreparing,
		StartedAt: time.Now(),
	}
	run := o.run
	done := o.doneCh
	o.mu.Unlock()

	go func() {
		defer cancel()
		defer close(done)
		o.execute(runCtx, mode)
	}()

	return run, nil
}

// Run performs a sync synchronously and returns the final run state.
func (o *Orchestrator) Run(ctx context.Context, mode model.SyncMode) (model.SyncRun, error) {
	run, err := o.Start(ctx, mode)
	if err != nil {
		return run, err
	}
	o.Wait()
	return o.Current(), nil
}

// Wait blocks until the active run (if any) finishes.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.doneCh
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Pause requests a cooperative pause. Only scanning, parsing, and syncing
// phases can pause; the request takes effect at the next batch checkpoint.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return ErrNoActiveSync
	}
	switch o.run.State {
	case model.SyncScanning, model.SyncParsing, model.SyncSyncing:
	default:
		return fmt.Errorf("cannot pause from state %q", o.run.State)
	}
	if o.paused {
		return nil
	}
	o.paused = true
	o.resumeCh = make(chan struct{})
	return nil
}

// Resume releases a paused run back into the state it paused from.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return ErrNoActiveSync
	}
	if !o.paused {
		return nil
	}
	o.paused = false
	close(o.resumeCh)
	o.resumeCh = nil
	return nil
}

// Cancel requests cooperative cancellation. Events committed so far stay
// committed; the run ends in the cancelled state.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return ErrNoActiveSync
	}
	if o.paused {
		o.paused = false
		close(o.resumeCh)
		o.resumeCh = nil
	}
	o.cancelFn()
	return nil
}

// checkpoint is called between units of work, never mid-record. It blocks
// while paused and reports cancellation.
func (o *Orchestrator) checkpoint(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errCancelled
	default:
	}

	o.mu.Lock()
	if !o.paused {
		o.mu.Unlock()
		return nil
	}
	o.pausedFrom = o.run.State
	o.run.State = model.SyncPaused
	resume := o.resumeCh
	o.mu.Unlock()

	select {
	case <-ctx.Done():
		return errCancelled
	case <-resume:
	}

	o.mu.Lock()
	if o.run.State == model.SyncPaused {
		o.run.State = o.pausedFrom
	}
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) setState(s model.SyncState) {
	o.mu.Lock()
	o.run.State = s
	o.mu.Unlock()
}

func (o *Orchestrator) updateProgress(processed, total int) {
	o.mu.Lock()
	o.run.ProcessedItems = processed
	o.run.TotalItems = total
	if total > 0 {
		o.run.Progress = float64(processed) / float64(total)
	}
	o.mu.Unlock()
	if o.opts.Progress != nil {
		o.opts.Progress(processed, total)
	}
}

func (o *Orchestrator) finish(state model.SyncState, err error, retryable bool) {
	o.mu.Lock()
	o.run.State = state
	o.run.FinishedAt = time.Now()
	if err != nil {
		o.run.LastError = err.Error()
		o.run.Retryable = retryable
	}
	o.active = false
	o.mu.Unlock()
}

// execute runs one ingestion pass through its phases:
// preparing -> scanning -> parsing -> validating -> syncing.
func (o *Orchestrator) execute(ctx context.Context, mode model.SyncMode) {
	if mode == model.SyncFull {
		if err := o.store.Reset(); err != nil {
			o.finish(model.SyncFailed, fmt.Errorf("clearing store for full sync: %w", err), true)
			return
		}
		if o.cache != nil {
			o.cache.Clear()
		}
	}

	o.setState(model.SyncScanning)
	files, err := source.ScanDir(o.opts.LogDir)
	if err != nil {
		o.finish(model.SyncFailed, fmt.Errorf("scanning %s: %w", o.opts.LogDir, err), true)
		return
	}

	changed, err := o.selectFiles(files, mode)
	if err != nil {
		o.finish(model.SyncFailed, err, true)
		return
	}
	total := len(changed)
	o.updateProgress(0, total)
	if total == 0 {
		o.finish(model.SyncCompleted, nil, false)
		return
	}

	// Seed the dedup index: empty for a full rebuild, the persisted set
	// for an incremental pass (covers re-reads of grown files and
	// cross-file overlap from log rotation).
	var seeded map[string]struct{}
	if mode == model.SyncIncremental {
		seeded, err = o.store.SeenKeys()
		if err != nil {
			o.finish(model.SyncFailed, fmt.Errorf("loading dedup index: %w", err), true)
			return
		}
	}
	idx := dedup.NewIndex(seeded)

	o.setState(model.SyncParsing)
	results, err := o.parsePhase(ctx, changed, idx)
	if err != nil {
		o.finish(model.SyncCancelled, nil, false)
		return
	}

	o.setState(model.SyncValidating)
	var lastFileErr error
	deduped, filtered, parseErrors, fileErrors := 0, 0, 0, 0
	commit := make([]fileResult, 0, len(results))
	for _, r := range results {
		if r.err != nil {
			fileErrors++
			lastFileErr = r.err
			o.logger.Warn("skipping unreadable log file",
				zap.String("path", r.file.Path), zap.Error(r.err))
			continue
		}
		deduped += r.deduped
		filtered += r.filtered
		parseErrors += r.parseErrors
		commit = append(commit, r)
	}
	o.mu.Lock()
	o.run.EventsIngested = countRequests(commit)
	o.run.EventsDeduped = deduped
	o.run.EventsFiltered = filtered
	o.run.ParseErrors = parseErrors
	o.run.FileErrors = fileErrors
	if lastFileErr != nil {
		o.run.LastError = lastFileErr.Error()
	}
	o.mu.Unlock()

	if fileErrors == total {
		o.finish(model.SyncFailed, fmt.Errorf("no readable files in scope: %w", lastFileErr), true)
		return
	}

	o.setState(model.SyncSyncing)
	days, err := o.syncPhase(ctx, commit)
	if o.cache != nil {
		// Invalidate whatever was committed, even on a partial run.
		o.cache.InvalidateDays(days)
	}
	if err != nil {
		if errors.Is(err, errCancelled) {
			o.finish(model.SyncCancelled, nil, false)
		} else {
			o.finish(model.SyncFailed, fmt.Errorf("persisting aggregates: %w", err), true)
		}
		return
	}
	o.finish(model.SyncCompleted, nil, false)
}

// selectFiles diffs discovered files against checkpoints. A full sync
// takes everything; an incremental pass takes only new or changed files.
func (o *Orchestrator) selectFiles(files []source.DiscoveredFile, mode model.SyncMode) ([]source.DiscoveredFile, error) {
	if mode == model.SyncFull {
		return files, nil
	}

	tracked, err := o.store.Checkpoints()
	if err != nil {
		return nil, fmt.Errorf("reading checkpoints: %w", err)
	}

	var changed []source.DiscoveredFile
	for _, f := range files {
		info, err := os.Stat(f.Path)
		if err != nil {
			// Vanished between discovery and stat; the parse phase
			// records it as a file error if still selected.
			changed = append(changed, f)
			continue
		}
		cp, ok := tracked[f.Path]
		if ok && cp.MtimeNs == info.ModTime().UnixNano() && cp.SizeBytes == info.Size() {
			continue
		}
		changed = append(changed, f)
	}
	return changed, nil
}

func countRequests(results []fileResult) int {
	n := 0
	for _, r := range results {
		n += r.events
	}
	return n
}
