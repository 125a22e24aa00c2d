package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrecap/pkg/socialdata"
)

func TestExportHistoryRoundTrip(t *testing.T) {
	records := socialdata.NewCollection()
	records.Add(
		socialdata.Tweet{IDStr: "2", FullText: "second"},
		socialdata.Tweet{IDStr: "10", FullText: "latest"},
		socialdata.Tweet{IDStr: "1", FullText: "first"},
	)
	profile := &socialdata.Profile{IDStr: "7", ScreenName: "jack"}

	path := filepath.Join(t.TempDir(), "exports", "jack.json")
	require.NoError(t, ExportHistory(path, "jack", profile, records))

	export, err := ReadHistory(path)
	require.NoError(t, err)
	assert.Equal(t, "jack", export.Handle)
	assert.Equal(t, 3, export.Total)
	assert.Equal(t, "jack", export.Profile.ScreenName)
	assert.False(t, export.ExportedAt.IsZero())

	require.Len(t, export.Posts, 3)
	assert.Equal(t, "10", export.Posts[0].IDStr, "posts are ordered newest first")
	assert.Equal(t, "1", export.Posts[2].IDStr)
}

func TestWriteJSONLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, WriteJSON(path, map[string]int{"a": 1}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.json", entries[0].Name())
}

func TestWriteJSONUnmarshalableValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	err := WriteJSON(path, make(chan int))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "marshal"))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "a failed export must not create the target file")
}

func TestReadHistoryMissingFile(t *testing.T) {
	_, err := ReadHistory(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
