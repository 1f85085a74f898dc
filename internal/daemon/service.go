// Package daemon provides the long-running background sync service with a
// local HTTP control API.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"ccstats/internal/cache"
	"ccstats/internal/engine"
	"ccstats/internal/ingest"
	"ccstats/internal/model"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Addr     string
	Interval time.Duration
	Days     int
	Project  string
	Watch    bool
	Debounce time.Duration
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time     `json:"started_at"`
	LastSyncAt      time.Time     `json:"last_sync_at"`
	SyncIntervalSec int           `json:"sync_interval_sec"`
	SyncCount       int64         `json:"sync_count"`
	LogDir          string        `json:"log_dir"`
	Sync            model.SyncRun `json:"sync"`
	Cache           []cache.Entry `json:"cache"`
	LastError       string        `json:"last_error,omitempty"`
}

// StatsResponse pairs aggregates with their freshness status.
type StatsResponse struct {
	Status string                    `json:"status"`
	Stats  model.AggregateStatistics `json:"stats"`
}

type syncRequest struct {
	Mode string `json:"mode"`
}

// Service drives periodic incremental syncs and exposes the control API.
type Service struct {
	cfg    Config
	eng    *engine.Engine
	logger *zap.Logger

	mu         sync.RWMutex
	startedAt  time.Time
	lastSyncAt time.Time
	syncCount  int64
	lastError  string
}

// New returns a daemon service around an engine.
func New(cfg Config, eng *engine.Engine, logger *zap.Logger) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8791"
	}
	if cfg.Days <= 0 {
		cfg.Days = 30
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		eng:       eng,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the HTTP control API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("POST /v1/sync", s.handleSync)
	mux.HandleFunc("POST /v1/sync/pause", s.handleSyncControl(s.eng.PauseSync))
	mux.HandleFunc("POST /v1/sync/resume", s.handleSyncControl(s.eng.ResumeSync))
	mux.HandleFunc("POST /v1/sync/cancel", s.handleSyncControl(s.eng.CancelSync))
	return mux
}

// Run serves the control API and syncs on a timer (and on file activity
// when watching is enabled) until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	changeCh := make(chan struct{}, 1)
	if s.cfg.Watch {
		w := s.eng.NewWatcher(s.cfg.Debounce, func() {
			select {
			case changeCh <- struct{}{}:
			default:
			}
		})
		go func() {
			if err := w.Run(ctx); err != nil {
				s.logger.Warn("log watcher stopped", zap.Error(err))
			}
		}()
	}

	// Seed so status is useful immediately.
	s.syncOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.syncOnce(ctx)
		case <-changeCh:
			s.syncOnce(ctx)
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

func (s *Service) syncOnce(ctx context.Context) {
	run, err := s.eng.RunSync(ctx, model.SyncIncremental)

	s.mu.Lock()
	s.lastSyncAt = time.Now()
	s.syncCount++
	if err != nil {
		if errors.Is(err, ingest.ErrSyncActive) {
			// A manually triggered run is in flight. Not an error.
			s.mu.Unlock()
			return
		}
		s.lastError = err.Error()
		s.mu.Unlock()
		s.logger.Warn("scheduled sync failed", zap.Error(err))
		return
	}
	s.lastError = ""
	s.mu.Unlock()

	s.logger.Debug("scheduled sync finished",
		zap.String("state", string(run.State)),
		zap.Int("events", run.EventsIngested),
		zap.Int("deduped", run.EventsDeduped))
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastSyncAt:      s.lastSyncAt,
		SyncIntervalSec: int(s.cfg.Interval.Seconds()),
		SyncCount:       s.syncCount,
		LogDir:          s.eng.LogDir(),
		Sync:            s.eng.SyncStatus(),
		Cache:           s.eng.CacheSnapshot(),
		LastError:       s.lastError,
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	days := s.cfg.Days
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid days parameter", http.StatusBadRequest)
			return
		}
		days = n
	}

	now := time.Now()
	from, to := now.AddDate(0, 0, -days), now
	if v := q.Get("from"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			http.Error(w, "invalid from parameter", http.StatusBadRequest)
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			http.Error(w, "invalid to parameter", http.StatusBadRequest)
			return
		}
		to = t
	}

	project := q.Get("project")
	if project == "" {
		project = s.cfg.Project
	}

	stats, status, err := s.eng.GetStatistics(from, to, project)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Status: string(status), Stats: stats})
}

func (s *Service) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.Body != nil {
		// An empty body means incremental.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	mode := model.SyncIncremental
	switch req.Mode {
	case "", "incremental":
	case "full":
		mode = model.SyncFull
	default:
		http.Error(w, "mode must be incremental or full", http.StatusBadRequest)
		return
	}

	var (
		run model.SyncRun
		err error
	)
	if mode == model.SyncFull {
		run, err = s.eng.PerformFullSync(context.Background())
	} else {
		run, err = s.eng.PerformIncrementalSync(context.Background())
	}
	if err != nil {
		if errors.Is(err, ingest.ErrSyncActive) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (s *Service) handleSyncControl(op func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := op(); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ingest.ErrNoActiveSync) {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, http.StatusOK, s.eng.SyncStatus())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
