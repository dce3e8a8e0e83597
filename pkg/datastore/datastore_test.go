package datastore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/betwixt/pkg/matcher"
	"github.com/praetorian-inc/betwixt/pkg/store"
	"github.com/praetorian-inc/betwixt/pkg/types"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.ds")

	ds, err := Open(path, Options{})
	require.NoError(t, err)
	assert.Nil(t, ds.Blobs)
	require.NoError(t, ds.Close())

	assert.FileExists(t, filepath.Join(path, DatabaseName))
	assert.FileExists(t, filepath.Join(path, ".gitignore"))
	assert.NoDirExists(t, filepath.Join(path, "blobs"))

	ds, err = Open(path, Options{StoreBlobs: true})
	require.NoError(t, err)
	require.NotNil(t, ds.Blobs)
	require.NoError(t, ds.Close())

	// blobs stored once are found again without the option
	ds, err = Open(path, Options{})
	require.NoError(t, err)
	defer ds.Close()
	assert.NotNil(t, ds.Blobs)

	_, err = Open("", Options{})
	assert.Error(t, err)
}

func TestOpenPath(t *testing.T) {
	dir := t.TempDir()

	// a file path stays a plain database
	dbPath := filepath.Join(dir, "scan.db")
	ds, err := OpenPath(dbPath, Options{})
	require.NoError(t, err)
	assert.Equal(t, dbPath, ds.Path)
	assert.Nil(t, ds.Blobs)
	require.NoError(t, ds.Close())
	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.False(t, info.IsDir())

	// an existing directory is a datastore
	dsPath := filepath.Join(dir, "existing")
	require.NoError(t, os.Mkdir(dsPath, 0o755))
	ds, err = OpenPath(dsPath, Options{})
	require.NoError(t, err)
	require.NoError(t, ds.Close())
	assert.FileExists(t, filepath.Join(dsPath, DatabaseName))

	// storing blobs needs a directory
	blobPath := filepath.Join(dir, "blobs.ds")
	ds, err = OpenPath(blobPath, Options{StoreBlobs: true})
	require.NoError(t, err)
	defer ds.Close()
	assert.NotNil(t, ds.Blobs)
}

func TestResults_RebuildsSnippets(t *testing.T) {
	ds, err := Open(filepath.Join(t.TempDir(), "scan.ds"), Options{StoreBlobs: true})
	require.NoError(t, err)
	defer ds.Close()

	content := []byte("one\ntwo\n<!-- x -->\nthree\nfour\n")
	rules := []*types.Rule{{
		ID:          "test.comment",
		Name:        "Comment",
		Identifiers: []types.Identifier{types.Ident("<!--")},
		Terminators: []types.Terminator{types.Term("-->")},
	}}
	m, err := matcher.New(matcher.Config{Rules: rules, ContextLines: 0})
	require.NoError(t, err)

	blobID, err := ds.Blobs.Store(content)
	require.NoError(t, err)
	matches, err := m.MatchWithBlobID(content, blobID)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	_, err = store.Record(ds.Store, blobID, int64(len(content)), types.FileProvenance{FilePath: "a.html"}, matches)
	require.NoError(t, err)

	// negative keeps the snippets captured at scan time
	assert.Same(t, ds.Store, ds.Results(-1))
	stored, err := ds.Results(-1).GetAllMatches()
	require.NoError(t, err)
	assert.Empty(t, stored[0].Snippet.Before)

	rebuilt, err := ds.Results(1).GetAllMatches()
	require.NoError(t, err)
	require.Len(t, rebuilt, 1)
	assert.Equal(t, "two\n", string(rebuilt[0].Snippet.Before))
	assert.Equal(t, "<!-- x -->", string(rebuilt[0].Snippet.Matching))
	assert.Equal(t, "three\n", string(rebuilt[0].Snippet.After))

	byBlob, err := ds.Results(1).GetMatches(blobID)
	require.NoError(t, err)
	require.Len(t, byBlob, 1)
	assert.Equal(t, "two\n", string(byBlob[0].Snippet.Before))
}

func TestResults_WithoutBlobs(t *testing.T) {
	ds, err := OpenPath(filepath.Join(t.TempDir(), "scan.db"), Options{})
	require.NoError(t, err)
	defer ds.Close()

	assert.Same(t, ds.Store, ds.Results(3))
}
