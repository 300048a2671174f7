package inbox_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/callmark/internal/analyzer"
	"github.com/MrWong99/callmark/internal/inbox"
	"github.com/MrWong99/callmark/internal/store"
	"github.com/MrWong99/callmark/internal/textmatch"
	"github.com/MrWong99/callmark/pkg/types"
)

const callJSON = `{
  "id": "call-1",
  "operator": [
    {"text": "Добрый день", "start": 0, "end": 1.5},
    {"text": "чем могу помочь?", "start": 1.8, "end": 3}
  ],
  "client": [
    {"text": "хочу вернуть деньги", "start": 3.5, "end": 5}
  ]
}`

var greetings = []types.Dictionary{{
	ID:        1,
	Name:      "Greetings",
	AppliesTo: types.ScopeOperator,
	Color:     "#00ff00",
	Phrases:   []string{"добрый день"},
}}

// memStore records every saved revision of every job.
type memStore struct {
	mu      sync.Mutex
	history map[string][]store.Status
	latest  map[string]store.Job
}

func newMemStore() *memStore {
	return &memStore{history: make(map[string][]store.Status), latest: make(map[string]store.Job)}
}

func (s *memStore) Put(job store.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[job.ID] = append(s.history[job.ID], job.Status)
	s.latest[job.ID] = job
	return nil
}

func (s *memStore) byStatus(status store.Status) []store.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Job
	for _, j := range s.latest {
		if j.Status == status {
			out = append(out, j)
		}
	}
	return out
}

type failingAnalyzer struct{ err error }

func (f failingAnalyzer) AnalyzeBatch(context.Context, []types.Utterance, []types.Dictionary) (map[string]types.AnalysisResult, error) {
	return nil, f.err
}

func newAnalyzer() *analyzer.Analyzer {
	return analyzer.New(textmatch.New(textmatch.NewNormalizer(nil)))
}

func dictionaries() []types.Dictionary { return greetings }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNew_CreatesDirectories(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "inbox")
	done := filepath.Join(t.TempDir(), "done")
	_, err := inbox.New(dir, newAnalyzer(), dictionaries, newMemStore(), inbox.WithProcessedDir(done))
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.DirExists(t, done)
}

func TestNew_EmptyDir(t *testing.T) {
	t.Parallel()

	_, err := inbox.New("", newAnalyzer(), dictionaries, newMemStore())
	assert.Error(t, err)
}

func TestProcess_Finished(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jobs := newMemStore()
	p, err := inbox.New(dir, newAnalyzer(), dictionaries, jobs)
	require.NoError(t, err)

	path := filepath.Join(dir, "call-1.json")
	writeFile(t, path, callJSON)

	job, err := p.Process(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, store.StatusFinished, job.Status)
	assert.Equal(t, "call-1", job.ConversationID)
	assert.Equal(t, "call-1.json", job.Source)
	assert.InDelta(t, 5.0, job.Duration, 1e-9)
	assert.Empty(t, job.Error)

	require.Len(t, job.Entries, 2)
	first := job.Entries[0]
	assert.Equal(t, types.SpeakerOperator, first.Speaker)
	assert.Equal(t, "Добрый день чем могу помочь?", first.Text)
	require.Len(t, first.Highlights, 1)
	assert.Equal(t, 0, first.Highlights[0].Start)
	assert.Equal(t, 11, first.Highlights[0].End)
	assert.Empty(t, job.Entries[1].Highlights)

	assert.Equal(t, []store.Status{store.StatusNew, store.StatusPending, store.StatusFinished}, jobs.history[job.ID])

	assert.NoFileExists(t, path)
	assert.FileExists(t, filepath.Join(dir, "processed", job.ID+"_call-1.json"))
}

func TestProcess_InvalidFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jobs := newMemStore()
	p, err := inbox.New(dir, newAnalyzer(), dictionaries, jobs)
	require.NoError(t, err)

	path := filepath.Join(dir, "broken.json")
	writeFile(t, path, `{"id": "x", "utterances": [`)

	job, err := p.Process(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, store.StatusFailed, job.Status)
	assert.NotEmpty(t, job.Error)
	assert.Equal(t, []store.Status{store.StatusNew, store.StatusPending, store.StatusFailed}, jobs.history[job.ID])
	assert.FileExists(t, filepath.Join(dir, "processed", job.ID+"_broken.json"))
}

func TestProcess_AnalyzerError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	boom := errors.New("boom")
	p, err := inbox.New(dir, failingAnalyzer{err: boom}, dictionaries, newMemStore())
	require.NoError(t, err)

	path := filepath.Join(dir, "call.json")
	writeFile(t, path, callJSON)

	job, err := p.Process(context.Background(), path)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, store.StatusFailed, job.Status)
	assert.Equal(t, "boom", job.Error)
}

func TestProcess_CancelledKeepsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, err := inbox.New(dir, newAnalyzer(), dictionaries, newMemStore())
	require.NoError(t, err)

	path := filepath.Join(dir, "call.json")
	writeFile(t, path, callJSON)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job, err := p.Process(ctx, path)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, store.StatusFailed, job.Status)
	assert.FileExists(t, path)
}

func TestRun_ExistingAndDroppedFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	done := filepath.Join(t.TempDir(), "done")
	jobs := newMemStore()
	writeFile(t, filepath.Join(dir, "early.json"), callJSON)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	p, err := inbox.New(dir, newAnalyzer(), dictionaries, jobs,
		inbox.WithProcessedDir(done),
		inbox.WithWorkers(2),
		inbox.WithSettle(20*time.Millisecond),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(jobs.byStatus(store.StatusFinished)) == 1
	}, 5*time.Second, 10*time.Millisecond)

	writeFile(t, filepath.Join(dir, "late.json"), callJSON)
	require.Eventually(t, func() bool {
		return len(jobs.byStatus(store.StatusFinished)) == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-runErr)

	var sources []string
	for _, j := range jobs.byStatus(store.StatusFinished) {
		sources = append(sources, j.Source)
	}
	slices.Sort(sources)
	assert.Equal(t, []string{"early.json", "late.json"}, sources)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	archived, err := os.ReadDir(done)
	require.NoError(t, err)
	assert.Len(t, archived, 2)
}
