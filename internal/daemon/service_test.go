package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccstats/internal/config"
	"ccstats/internal/engine"
	"ccstats/internal/model"
)

func newTestService(t *testing.T) (*Service, *engine.Engine) {
	t.Helper()

	logDir := t.TempDir()
	dir := filepath.Join(logDir, "projects", "-home-u-projects-app")
	require.NoError(t, os.MkdirAll(dir, 0o750))
	line := fmt.Sprintf(`{"type":"assistant","timestamp":"%sT10:00:00Z","sessionId":"sess-1","requestId":"r1","message":{"model":"claude-sonnet-4-5","usage":{"input_tokens":100,"output_tokens":10}}}`,
		time.Now().AddDate(0, 0, -1).Format("2006-01-02"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sess-1.jsonl"), []byte(line+"\n"), 0o600))

	eng, err := engine.New(engine.Options{
		Config: config.DefaultConfig(),
		DBPath: filepath.Join(t.TempDir(), "usage.db"),
		LogDir: logDir,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	svc := New(Config{Days: 30, Interval: time.Minute}, eng, nil)
	return svc, eng
}

func TestHealthEndpoint(t *testing.T) {
	svc, _ := newTestService(t)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	svc, _ := newTestService(t)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/status")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, 60, st.SyncIntervalSec)
	assert.Equal(t, model.SyncIdle, st.Sync.State)
	assert.NotEmpty(t, st.LogDir)
}

func TestSyncEndpointAndStats(t *testing.T) {
	svc, eng := newTestService(t)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	body := bytes.NewBufferString(`{"mode":"incremental"}`)
	resp, err := http.Post(srv.URL+"/v1/sync", "application/json", body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	// the sync runs in the background; wait for it to settle
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if eng.SyncStatus().State.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, model.SyncCompleted, eng.SyncStatus().State)

	statsResp, err := http.Get(srv.URL + "/v1/stats?days=30")
	require.NoError(t, err)
	defer func() { _ = statsResp.Body.Close() }()
	require.Equal(t, http.StatusOK, statsResp.StatusCode)

	var sr StatsResponse
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&sr))
	assert.Equal(t, "fresh", sr.Status)
	assert.Equal(t, int64(1), sr.Stats.TotalRequests)
	assert.Equal(t, int64(100), sr.Stats.InputTokens)
}

func TestSyncEndpointRejectsBadMode(t *testing.T) {
	svc, _ := newTestService(t)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/sync", "application/json",
		bytes.NewBufferString(`{"mode":"sideways"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsEndpointValidatesParams(t *testing.T) {
	svc, _ := newTestService(t)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	for _, q := range []string{"days=0", "days=abc", "from=August", "to=2025-13-99"} {
		resp, err := http.Get(srv.URL + "/v1/stats?" + q)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "query %q", q)
	}
}

func TestSyncControlWithoutActiveRun(t *testing.T) {
	svc, _ := newTestService(t)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	for _, action := range []string{"pause", "resume", "cancel"} {
		resp, err := http.Post(srv.URL+"/v1/sync/"+action, "application/json", nil)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode, "action %q", action)
	}
}
