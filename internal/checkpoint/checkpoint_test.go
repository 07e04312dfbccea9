package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), hclog.NewNullLogger())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	assert.False(t, store.Exists())

	cp := &Checkpoint{
		SessionID:        "session-1",
		FolderPath:       "/movies",
		TotalFiles:       100,
		ProcessedFiles:   40,
		PendingFilePaths: []string{"/movies/a.mkv", "/movies/b.mkv"},
	}
	require.NoError(t, store.Save(cp))
	assert.True(t, store.Exists())
	assert.False(t, cp.SavedAt.IsZero())

	got, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, cp.SessionID, got.SessionID)
	assert.Equal(t, cp.PendingFilePaths, got.PendingFilePaths)
	assert.Equal(t, 40, got.ProcessedFiles)
	assert.InDelta(t, 40.0, got.ProgressPercentage(), 0.001)
}

func TestSaveOverwritesAtomically(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&Checkpoint{SessionID: "one", TotalFiles: 10}))
	require.NoError(t, store.Save(&Checkpoint{SessionID: "two", TotalFiles: 20}))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "two", got.SessionID)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&Checkpoint{SessionID: "x"}))
	require.NoError(t, store.Delete())
	assert.False(t, store.Exists())
	require.NoError(t, store.Delete())
}

func TestPruneStale(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Save(&Checkpoint{
		SessionID: "old",
		SavedAt:   time.Now().Add(-48 * time.Hour),
	}))

	stale, err := store.PruneStale(24 * time.Hour)
	require.NoError(t, err)
	require.NotNil(t, stale)
	assert.Equal(t, "old", stale.SessionID)
	assert.False(t, store.Exists())

	// A fresh checkpoint survives pruning.
	require.NoError(t, store.Save(&Checkpoint{SessionID: "fresh"}))
	stale, err = store.PruneStale(24 * time.Hour)
	require.NoError(t, err)
	assert.Nil(t, stale)
	assert.True(t, store.Exists())
}
