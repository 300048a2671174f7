package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/callmark/internal/app"
	"github.com/MrWong99/callmark/internal/config"
	"github.com/MrWong99/callmark/internal/store"
	"github.com/MrWong99/callmark/pkg/morph"
)

const dictionariesYAML = `
dictionaries:
  - id: 1
    name: Greetings
    applies_to: operator
    color: "#00ff00"
    phrases:
      - добрый день
`

const updatedYAML = `
dictionaries:
  - id: 1
    name: Greetings
    applies_to: operator
    phrases:
      - добрый день
  - id: 2
    name: Refunds
    phrases:
      - вернуть деньги
`

const callJSON = `{
  "id": "call-7",
  "operator": [{"text": "Добрый день", "start": 0, "end": 1}],
  "client": [{"text": "хочу вернуть деньги", "start": 1.5, "end": 3}]
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	dictPath := filepath.Join(dir, "dictionaries.yaml")
	require.NoError(t, os.WriteFile(dictPath, []byte(dictionariesYAML), 0o644))

	cfg := config.Default()
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Dictionaries.Path = dictPath
	cfg.Store.Path = filepath.Join(dir, "jobs.db")
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), cfg, morph.Identity, app.WithVersion("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func get(t *testing.T, a *app.App, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestNew_StaticDictionaries(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(t))
	dicts := a.Dictionaries()
	require.Len(t, dicts, 1)
	assert.Equal(t, "Greetings", dicts[0].Name)
}

func TestNew_MissingDictionaryFile(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Dictionaries.Path = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := app.New(context.Background(), cfg, morph.Identity)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewAnalyzer_UsesConfig(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(t))
	entries, err := a.Analyzer().AnalyzeBatch(context.Background(), nil, a.Dictionaries())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestProbes(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(t))
	assert.Equal(t, http.StatusOK, get(t, a, "/healthz").Code)

	rec := get(t, a, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dictionaries":"ok"`)
	assert.Contains(t, rec.Body.String(), `"store":"ok"`)
}

func TestReadyz_NoDictionaries(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Dictionaries.Path = ""
	a := newApp(t, cfg)

	rec := get(t, a, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no dictionaries loaded")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(t))
	get(t, a, "/healthz")

	rec := get(t, a, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "callmark_http_request_duration")
}

func TestJobsAPI(t *testing.T) {
	t.Parallel()

	a := newApp(t, testConfig(t))
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	require.NoError(t, a.Store().Put(store.Job{
		ID: "job-1", Source: "a.json", Status: store.StatusFinished,
		CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, a.Store().Put(store.Job{
		ID: "job-2", Source: "b.json", Status: store.StatusFailed, Error: "bad json",
		CreatedAt: now.Add(time.Second), UpdatedAt: now.Add(time.Second),
	}))

	t.Run("get", func(t *testing.T) {
		rec := get(t, a, "/v1/jobs/job-2")
		require.Equal(t, http.StatusOK, rec.Code)
		var job store.Job
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
		assert.Equal(t, store.StatusFailed, job.Status)
		assert.Equal(t, "bad json", job.Error)
	})

	t.Run("not found", func(t *testing.T) {
		rec := get(t, a, "/v1/jobs/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "job not found")
	})

	t.Run("list", func(t *testing.T) {
		rec := get(t, a, "/v1/jobs")
		require.Equal(t, http.StatusOK, rec.Code)
		var jobs []store.Job
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&jobs))
		require.Len(t, jobs, 2)
		assert.Equal(t, "job-1", jobs[0].ID)
	})

	t.Run("list by status", func(t *testing.T) {
		rec := get(t, a, "/v1/jobs?status=finished")
		require.Equal(t, http.StatusOK, rec.Code)
		var jobs []store.Job
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&jobs))
		require.Len(t, jobs, 1)
		assert.Equal(t, "job-1", jobs[0].ID)
	})

	t.Run("list unknown status", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(t, a, "/v1/jobs?status=done").Code)
	})
}

func TestWatch_ReloadsDictionaries(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Dictionaries.Watch = true
	cfg.Dictionaries.Debounce = 20 * time.Millisecond
	a := newApp(t, cfg)
	require.Len(t, a.Dictionaries(), 1)

	require.NoError(t, os.WriteFile(cfg.Dictionaries.Path, []byte(updatedYAML), 0o644))
	require.Eventually(t, func() bool {
		return len(a.Dictionaries()) == 2
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRun_ProcessesInbox(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Inbox.Dir = filepath.Join(t.TempDir(), "inbox")
	cfg.Inbox.ProcessedDir = filepath.Join(t.TempDir(), "processed")
	a := newApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Inbox.Dir, "call-7.json"), []byte(callJSON), 0o644))

	var finished []store.Job
	require.Eventually(t, func() bool {
		var err error
		finished, err = a.Store().List(store.StatusFinished)
		return err == nil && len(finished) == 1
	}, 5*time.Second, 20*time.Millisecond)

	job := finished[0]
	assert.Equal(t, "call-7", job.ConversationID)
	require.Len(t, job.Entries, 2)
	assert.Contains(t, job.Entries[0].TextWithHighlights, `data-dict-name="Greetings"`)
	assert.Empty(t, job.Entries[1].Highlights)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	assert.NoError(t, a.Shutdown(ctxShutdown))
}
