package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccstats/internal/cache"
	"ccstats/internal/model"
	"ccstats/internal/pricing"
	"ccstats/internal/source"
	"ccstats/internal/store"
)

func line(requestID, sessionID string, input, output int64) string {
	return fmt.Sprintf(`{"type":"assistant","timestamp":"2025-08-01T10:00:00Z","sessionId":%q,"requestId":%q,"message":{"id":"msg-%s","model":"claude-sonnet-4-5","usage":{"input_tokens":%d,"output_tokens":%d}}}`,
		sessionID, requestID, requestID, input, output)
}

func writeSession(t *testing.T, logDir, projectDir, sessionID string, lines ...string) string {
	t.Helper()
	dir := filepath.Join(logDir, "projects", projectDir)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	path := filepath.Join(dir, sessionID+".jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

type testEnv struct {
	orch  *Orchestrator
	store *store.Store
	cache *cache.Controller
}

func newTestEnv(t *testing.T, logDir string, progress ProgressFunc) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cc := cache.NewController(time.Hour, time.Second, nil)
	norm := source.NewNormalizer(pricing.Default(), nil)
	orch := NewOrchestrator(Options{LogDir: logDir, BatchSize: 1, Progress: progress}, st, norm, cc, nil)
	return &testEnv{orch: orch, store: st, cache: cc}
}

func TestIncrementalSyncIngestsAndIsIdempotent(t *testing.T) {
	logDir := t.TempDir()
	writeSession(t, logDir, "-home-u-projects-app", "sess-1",
		line("r1", "sess-1", 100, 50),
		line("r2", "sess-1", 200, 100),
	)

	env := newTestEnv(t, logDir, nil)

	run, err := env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)
	assert.Equal(t, model.SyncCompleted, run.State)
	assert.Equal(t, 2, run.EventsIngested)
	assert.Zero(t, run.EventsDeduped)
	assert.Zero(t, run.ParseErrors)

	cells, err := env.store.QueryCells("", "", "")
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, int64(300), cells[0].InputTokens)
	assert.Equal(t, int64(2), cells[0].Requests)

	// unchanged files are skipped entirely on the next pass
	run, err = env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)
	assert.Equal(t, model.SyncCompleted, run.State)
	assert.Zero(t, run.TotalItems)

	cells, err = env.store.QueryCells("", "", "")
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, int64(300), cells[0].InputTokens, "re-sync must not double count")
}

func TestIncrementalSyncPicksUpAppendedLines(t *testing.T) {
	logDir := t.TempDir()
	path := writeSession(t, logDir, "-home-u-projects-app", "sess-1",
		line("r1", "sess-1", 100, 0),
	)

	env := newTestEnv(t, logDir, nil)
	_, err := env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)

	// append one new line; the whole file is re-read but r1 dedups away
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString(line("r2", "sess-1", 50, 0) + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	run, err := env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)
	assert.Equal(t, model.SyncCompleted, run.State)
	assert.Equal(t, 1, run.EventsIngested)
	assert.Equal(t, 1, run.EventsDeduped)

	cells, err := env.store.QueryCells("", "", "")
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, int64(150), cells[0].InputTokens)
}

func TestCrossFileDuplicateRequestID(t *testing.T) {
	logDir := t.TempDir()
	// the same request id shows up in two session files (log rotation)
	writeSession(t, logDir, "-home-u-projects-app", "sess-1", line("shared", "sess-1", 100, 0))
	writeSession(t, logDir, "-home-u-projects-app", "sess-2", line("shared", "sess-2", 100, 0))

	env := newTestEnv(t, logDir, nil)
	run, err := env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, run.EventsIngested)
	assert.Equal(t, 1, run.EventsDeduped)

	cells, err := env.store.QueryCells("", "", "")
	require.NoError(t, err)
	var totalInput, totalRequests int64
	for _, c := range cells {
		totalInput += c.InputTokens
		totalRequests += c.Requests
	}
	assert.Equal(t, int64(100), totalInput, "duplicate must be counted once")
	assert.Equal(t, int64(1), totalRequests)
}

func TestFullSyncRebuildsFromScratch(t *testing.T) {
	logDir := t.TempDir()
	writeSession(t, logDir, "-home-u-projects-app", "sess-1",
		line("r1", "sess-1", 100, 50),
	)

	env := newTestEnv(t, logDir, nil)
	_, err := env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)

	// a full pass clears everything and re-reads; totals stay identical
	run, err := env.orch.Run(context.Background(), model.SyncFull)
	require.NoError(t, err)
	assert.Equal(t, model.SyncCompleted, run.State)
	assert.Equal(t, 1, run.EventsIngested)
	assert.Zero(t, run.EventsDeduped, "full sync starts with an empty dedup index")

	cells, err := env.store.QueryCells("", "", "")
	require.NoError(t, err)
	require.Len(t, cells, 1)
	assert.Equal(t, int64(100), cells[0].InputTokens)
}

func TestMalformedLinesAreNonFatal(t *testing.T) {
	logDir := t.TempDir()
	writeSession(t, logDir, "-home-u-projects-app", "sess-1",
		line("r1", "sess-1", 100, 0),
		`{"type":"assistant","usage":{"input_tokens":`,
		"not json",
		"{}",
		line("r2", "sess-1", 50, 0),
	)

	env := newTestEnv(t, logDir, nil)
	run, err := env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)

	assert.Equal(t, model.SyncCompleted, run.State)
	assert.Equal(t, 2, run.EventsIngested)
	assert.Equal(t, 3, run.ParseErrors)
}

func TestFilteredRecordsAreCounted(t *testing.T) {
	logDir := t.TempDir()
	writeSession(t, logDir, "-home-u-projects-app", "sess-1",
		line("r1", "sess-1", 100, 0),
		// synthetic model: dropped by the filter, not a parse error
		`{"type":"assistant","timestamp":"2025-08-01T10:00:00Z","sessionId":"sess-1","requestId":"r2","message":{"model":"<synthetic>","usage":{"input_tokens":5}}}`,
	)

	env := newTestEnv(t, logDir, nil)
	run, err := env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)

	assert.Equal(t, 1, run.EventsIngested)
	assert.Equal(t, 1, run.EventsFiltered)
	assert.Zero(t, run.ParseErrors)
}

func TestEmptyLogDirCompletes(t *testing.T) {
	env := newTestEnv(t, t.TempDir(), nil)

	run, err := env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)
	assert.Equal(t, model.SyncCompleted, run.State)
	assert.Zero(t, run.TotalItems)
}

func TestAllFilesUnreadableFails(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root, permission-based unreadability not enforceable")
	}

	logDir := t.TempDir()
	path := writeSession(t, logDir, "-home-u-projects-app", "sess-1",
		line("r1", "sess-1", 1, 0),
	)
	require.NoError(t, os.Chmod(path, 0o000))

	env := newTestEnv(t, logDir, nil)
	run, err := env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)

	assert.Equal(t, model.SyncFailed, run.State)
	assert.Equal(t, 1, run.FileErrors)
	assert.True(t, run.Retryable)
	assert.NotEmpty(t, run.LastError)
}

func TestControlOpsRequireActiveRun(t *testing.T) {
	env := newTestEnv(t, t.TempDir(), nil)

	assert.ErrorIs(t, env.orch.Pause(), ErrNoActiveSync)
	assert.ErrorIs(t, env.orch.Resume(), ErrNoActiveSync)
	assert.ErrorIs(t, env.orch.Cancel(), ErrNoActiveSync)
}

func TestPauseResumeAndConcurrentRejection(t *testing.T) {
	logDir := t.TempDir()
	for i := 0; i < 5; i++ {
		writeSession(t, logDir, "-home-u-projects-app", fmt.Sprintf("sess-%d", i),
			line(fmt.Sprintf("r%d", i), fmt.Sprintf("sess-%d", i), 10, 0),
		)
	}

	var env *testEnv
	paused := make(chan struct{}, 1)
	progress := func(current, total int) {
		if current == 1 {
			// pause after the first file; the next checkpoint honors it
			_ = env.orch.Pause()
			select {
			case paused <- struct{}{}:
			default:
			}
		}
	}
	env = newTestEnv(t, logDir, progress)

	_, err := env.orch.Start(context.Background(), model.SyncIncremental)
	require.NoError(t, err)

	select {
	case <-paused:
	case <-time.After(5 * time.Second):
		t.Fatal("pause request never issued")
	}

	// wait for the run to actually park
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if env.orch.Current().State == model.SyncPaused {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, model.SyncPaused, env.orch.Current().State)

	// a second sync is rejected while one is active
	_, err = env.orch.Start(context.Background(), model.SyncIncremental)
	assert.ErrorIs(t, err, ErrSyncActive)

	require.NoError(t, env.orch.Resume())
	env.orch.Wait()

	run := env.orch.Current()
	assert.Equal(t, model.SyncCompleted, run.State)
	assert.Equal(t, 5, run.EventsIngested)
}

func TestCancelKeepsCommittedWork(t *testing.T) {
	logDir := t.TempDir()
	for i := 0; i < 5; i++ {
		writeSession(t, logDir, "-home-u-projects-app", fmt.Sprintf("sess-%d", i),
			line(fmt.Sprintf("r%d", i), fmt.Sprintf("sess-%d", i), 10, 0),
		)
	}

	var env *testEnv
	progress := func(current, total int) {
		if current == 2 {
			_ = env.orch.Cancel()
		}
	}
	env = newTestEnv(t, logDir, progress)

	run, err := env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)
	assert.Equal(t, model.SyncCancelled, run.State)
	assert.Empty(t, run.LastError, "cancellation is not an error")

	// whatever was committed before the cancel point survives, and a later
	// run finishes the job without double counting
	run, err = env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)
	assert.Equal(t, model.SyncCompleted, run.State)

	cells, err := env.store.QueryCells("", "", "")
	require.NoError(t, err)
	var total int64
	for _, c := range cells {
		total += c.InputTokens
	}
	assert.Equal(t, int64(50), total)
}

func TestSyncInvalidatesCacheEntries(t *testing.T) {
	logDir := t.TempDir()
	writeSession(t, logDir, "-home-u-projects-app", "sess-1",
		line("r1", "sess-1", 100, 0),
	)

	env := newTestEnv(t, logDir, nil)

	key := cache.QueryKey("2025-08-01", "2025-08-31", "")
	env.cache.BeginLoad(key, "2025-08-01", "2025-08-31", "")
	env.cache.Complete(key, model.AggregateStatistics{})

	_, err := env.orch.Run(context.Background(), model.SyncIncremental)
	require.NoError(t, err)

	_, status := env.cache.Lookup(key)
	assert.Equal(t, cache.StatusEmpty, status, "entries covering synced days are dropped for recompute")
}
