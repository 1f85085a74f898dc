package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher observes the log directory's projects tree and fires a debounced
// callback when session files change, so the daemon can kick off an
// incremental sync without polling.
type Watcher struct {
	logDir   string
	debounce time.Duration
	onChange func()
	logger   *zap.Logger
}

// NewWatcher builds a watcher calling onChange after file activity settles.
func NewWatcher(logDir string, debounce time.Duration, onChange func(), logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		logDir:   logDir,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
	}
}

// Run watches until ctx is cancelled. New project subdirectories are added
// to the watch set as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	projectsDir := filepath.Join(w.logDir, "projects")
	if err := w.addTree(fw, projectsDir); err != nil {
		w.logger.Warn("watching projects dir", zap.Error(err))
	}

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = fw.Add(ev.Name)
				}
			}
			if !strings.HasSuffix(ev.Name, ".jsonl") {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case <-timerCh:
			timer = nil
			timerCh = nil
			w.onChange()
		}
	}
}

// addTree registers the directory and all its subdirectories.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	if _, err := os.Stat(root); err != nil {
		return err
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
