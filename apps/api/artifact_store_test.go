package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uploadKeyPattern = regexp.MustCompile(`^[0-9a-f]{16}-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.xls[xm]$`)

func newTestStore(t *testing.T) *ArtifactStore {
	t.Helper()
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSaveUploadIgnoresClientFilename(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		filename string
		ext      string
	}{
		{filename: "engagements.xlsx", ext: ".xlsx"},
		{filename: "Macro.XLSM", ext: ".xlsm"},
		{filename: "../../etc/passwd", ext: ".xlsx"},
		{filename: "", ext: ".xlsx"},
	}

	for _, tt := range tests {
		key, err := store.SaveUpload([]byte("content"), tt.filename)
		require.NoError(t, err)
		assert.Regexp(t, uploadKeyPattern, key)
		assert.True(t, strings.HasSuffix(key, tt.ext), "key %q for %q", key, tt.filename)

		raw, err := os.ReadFile(filepath.Join(store.uploadsDir(), key))
		require.NoError(t, err)
		assert.Equal(t, "content", string(raw))
	}
}

func TestSaveUploadSameContentGetsDistinctKeys(t *testing.T) {
	store := newTestStore(t)

	first, err := store.SaveUpload([]byte("same"), "a.xlsx")
	require.NoError(t, err)
	second, err := store.SaveUpload([]byte("same"), "a.xlsx")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, first[:uploadDigestHexLength], second[:uploadDigestHexLength])
}

func TestSaveMapThenLoad(t *testing.T) {
	store := newTestStore(t)
	artifact := MapArtifact{
		ID:        newArtifactID(),
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Language:  "ko",
		UploadKey: "abc.xlsx",
		Points:    []GeocodedPoint{{Name: "서울", Latitude: 37.5665, Longitude: 126.978, Weight: 3}},
	}

	require.NoError(t, store.SaveMap(artifact, []byte("<html></html>")))

	loaded, err := store.LoadArtifact(artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, artifact, *loaded)

	path, err := store.DocumentPath(artifact.ID)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(raw))

	entries, err := os.ReadDir(store.mapsDir())
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), ".staging-"), "staging dir left behind: %s", entry.Name())
	}
}

func TestSaveMapRejectsInvalidID(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveMap(MapArtifact{ID: "../escape"}, []byte("x"))
	require.Error(t, err)
}

func TestSaveMapDoesNotOverwriteExistingArtifact(t *testing.T) {
	store := newTestStore(t)
	artifact := MapArtifact{ID: newArtifactID()}
	require.NoError(t, store.SaveMap(artifact, []byte("first")))

	require.Error(t, store.SaveMap(artifact, []byte("second")))

	path, err := store.DocumentPath(artifact.ID)
	require.NoError(t, err)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(raw))
}

func TestLoadArtifactNotFound(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{newArtifactID(), "not-a-uuid", "../maps", strings.ToUpper(newArtifactID())} {
		_, err := store.LoadArtifact(id)
		assert.ErrorIs(t, err, errArtifactNotFound, id)
		_, err = store.DocumentPath(id)
		assert.ErrorIs(t, err, errArtifactNotFound, id)
	}
}

func TestConcurrentSavesDoNotInterfere(t *testing.T) {
	store := newTestStore(t)

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = newArtifactID()
			assert.NoError(t, store.SaveMap(MapArtifact{ID: ids[i]}, []byte(ids[i])))
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		path, err := store.DocumentPath(id)
		require.NoError(t, err)
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, id, string(raw))
	}
}
