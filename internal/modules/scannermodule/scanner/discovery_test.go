package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestDiscoverVideoFiles(t *testing.T) {
	dir := t.TempDir()

	touch(t, filepath.Join(dir, "movie.mkv"))
	touch(t, filepath.Join(dir, "clip.MP4"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "sub", "episode.avi"))
	touch(t, filepath.Join(dir, ".hidden.mkv"))
	touch(t, filepath.Join(dir, ".cache", "tmp.mkv"))
	touch(t, filepath.Join(dir, "Final Cut.fcpbundle", "render.mov"))
	touch(t, filepath.Join(dir, "Some.app", "Contents", "intro.mp4"))

	files, err := DiscoverVideoFiles(dir)
	require.NoError(t, err)

	names := make([]string, len(files))
	for i, f := range files {
		rel, _ := filepath.Rel(dir, f)
		names[i] = rel
	}
	assert.ElementsMatch(t, []string{"movie.mkv", "clip.MP4", filepath.Join("sub", "episode.avi")}, names)

	// Paths come back absolute.
	for _, f := range files {
		assert.True(t, filepath.IsAbs(f))
	}
}

func TestDiscoverMissingFolder(t *testing.T) {
	_, err := DiscoverVideoFiles(filepath.Join(t.TempDir(), "nope"))
	var accessErr *ErrFolderAccessDenied
	assert.ErrorAs(t, err, &accessErr)
}

func TestDiscoverFileAsRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.mkv")
	touch(t, file)

	_, err := DiscoverVideoFiles(file)
	var accessErr *ErrFolderAccessDenied
	assert.ErrorAs(t, err, &accessErr)
}
