package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrWong99/callmark/internal/conversation"
	"github.com/MrWong99/callmark/internal/store"
	"github.com/MrWong99/callmark/pkg/types"
)

func newTestStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func sampleJob(id string, status store.Status, created time.Time) store.Job {
	return store.Job{
		ID:             id,
		Source:         "call-" + id + ".json",
		ConversationID: "conv-" + id,
		Status:         status,
		CreatedAt:      created,
		UpdatedAt:      created,
		Duration:       12.5,
		Entries: []conversation.Entry{{
			Utterance: types.Utterance{
				Speaker:   types.SpeakerOperator,
				Text:      "добрый день",
				StartTime: 0,
				EndTime:   1.5,
			},
			TextWithHighlights: `<mark style="background-color:#00ff00" class="match exact" data-dict-name="Greetings" data-dict="1">добрый день</mark>`,
			MatchedPhrases:     map[int64][]string{1: {"добрый день"}},
			Highlights: []types.MatchSpan{{
				Phrase: "добрый день", Start: 0, End: 11,
				DictionaryID: 1, DictionaryName: "Greetings", DictionaryColor: "#00ff00",
				Kind: types.MatchExact,
			}},
		}},
	}
}

func TestPutGet(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	job := sampleJob("a", store.StatusFinished, created)
	require.NoError(t, s.Put(job))

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.Status, got.Status)
	assert.True(t, job.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, job.Entries, got.Entries)
}

func TestPut_Overwrites(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	job := sampleJob("a", store.StatusPending, time.Now())
	require.NoError(t, s.Put(job))
	job.Status = store.StatusFailed
	job.Error = "decode failed"
	require.NoError(t, s.Put(job))

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, got.Status)
	assert.Equal(t, "decode failed", got.Error)
}

func TestPut_EmptyID(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	assert.Error(t, s.Put(store.Job{}))
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestList(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(sampleJob("c", store.StatusFinished, base.Add(2*time.Minute))))
	require.NoError(t, s.Put(sampleJob("a", store.StatusFailed, base)))
	require.NoError(t, s.Put(sampleJob("b", store.StatusFinished, base.Add(time.Minute))))

	all, err := s.List("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})

	finished, err := s.List(store.StatusFinished)
	require.NoError(t, err)
	require.Len(t, finished, 2)
	assert.Equal(t, "b", finished[0].ID)
	assert.Equal(t, "c", finished[1].ID)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	require.NoError(t, s.Put(sampleJob("a", store.StatusNew, time.Now())))
	require.NoError(t, s.Delete("a"))
	require.NoError(t, s.Delete("a"))

	_, err := s.Get("a")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReopen_Persists(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(sampleJob("a", store.StatusFinished, time.Now())))
	require.NoError(t, s.Close())

	s, err = store.Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "conv-a", got.ConversationID)
}

func TestPing(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)

	assert.NoError(t, s.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Ping(ctx), context.Canceled)
}
