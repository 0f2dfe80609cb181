package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/storage"
	"github.com/Muzafar-sm/AI-subtitle-Generator/internal/subtitle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "subgen.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_ReopenKeepsSchema(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "subgen.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	_, err = store.RecordObject(context.Background(), storage.Object{Name: "a.wav", Size: 1})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	_, found, err := reopened.GetObject(context.Background(), "a.wav")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSQLiteStore_RecordObjectIncrementsVersion(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	v1, err := store.RecordObject(ctx, storage.Object{Name: "clip.wav", Size: 10, SHA256: "aa", ContentType: "audio/wav"})
	require.NoError(t, err)
	require.NoError(t, store.SetObjectDuration(ctx, "clip.wav", 1500*time.Millisecond))

	rec, found, err := store.GetObject(ctx, "clip.wav")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(1500), rec.DurationMS)

	v2, err := store.RecordObject(ctx, storage.Object{Name: "clip.wav", Size: 20, SHA256: "bb", ContentType: "audio/wav"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1)
	assert.Equal(t, int64(2), v2)

	rec, found, err = store.GetObject(ctx, "clip.wav")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(20), rec.Size)
	assert.Equal(t, "bb", rec.SHA256)
	assert.Zero(t, rec.DurationMS, "overwrite resets probed duration")

	_, found, err = store.GetObject(ctx, "missing.wav")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = store.RecordObject(ctx, storage.Object{Name: "clip.srt", Size: 5})
	require.NoError(t, err)
	all, err := store.ListObjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSQLiteStore_CaptionSetRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	set := CaptionSet{
		Source:           "clip.wav",
		Format:           "srt",
		Language:         "fr",
		DetectedLanguage: "fr",
		Captions: []subtitle.Caption{
			{Index: 1, Start: 0, End: 1.25, Text: "Bonjour"},
			{Index: 2, Start: 1.25, End: 2.5, Text: "le monde"},
		},
	}
	require.NoError(t, store.PutCaptionSet(ctx, set))

	got, found, err := store.GetCaptionSet(ctx, "clip.wav")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, set.Captions, got.Captions)
	assert.Equal(t, "fr", got.Language)

	set.Captions = set.Captions[:1]
	set.Format = "vtt"
	require.NoError(t, store.PutCaptionSet(ctx, set))
	got, _, err = store.GetCaptionSet(ctx, "clip.wav")
	require.NoError(t, err)
	assert.Len(t, got.Captions, 1)
	assert.Equal(t, "vtt", got.Format)

	_, found, err = store.GetCaptionSet(ctx, "other.wav")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStore_RequestsHistoryAndPrune(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.UpsertRequest(ctx, Request{
		ID: "old", Kind: RequestGenerate, Filename: "a.wav", Status: RequestSuccess,
		CreatedAt: old, UpdatedAt: old,
	}))
	require.NoError(t, store.UpsertRequest(ctx, Request{
		ID: "stuck", Kind: RequestGenerate, Filename: "b.wav", Status: RequestRunning,
		CreatedAt: old, UpdatedAt: old,
	}))
	require.NoError(t, store.UpsertRequest(ctx, Request{
		ID: "new", Kind: RequestEdit, Filename: "a.wav", Status: RequestRunning,
	}))
	require.NoError(t, store.UpsertRequest(ctx, Request{
		ID: "new", Kind: RequestEdit, Filename: "a.wav", Status: RequestSuccess,
		Artifact: "a_edited.srt", Format: "srt", CaptionCount: 3, Translated: true,
	}))

	all, err := store.ListRequests(ctx, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "new", all[0].ID)
	assert.Equal(t, RequestSuccess, all[0].Status)
	assert.Equal(t, "a_edited.srt", all[0].Artifact)
	assert.True(t, all[0].Translated)
	assert.Equal(t, 3, all[0].CaptionCount)

	limited, err := store.ListRequests(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := store.PruneRequests(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err = store.ListRequests(ctx, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"new", "stuck"}, ids)

	require.Error(t, store.UpsertRequest(ctx, Request{}))
}

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_init.sql"))
	assert.Equal(t, 12, migrationVersion("12"))
	assert.Equal(t, 0, migrationVersion("init.sql"))
}
