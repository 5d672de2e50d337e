package wal

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, nil, 0600))
}

func TestListLogs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "000012.log"))
	touch(t, filepath.Join(dir, "archive", "000003.log"))
	touch(t, filepath.Join(dir, "archive", "000007.log"))
	touch(t, filepath.Join(dir, "MANIFEST-000001"))
	touch(t, filepath.Join(dir, "000005.sst"))
	touch(t, filepath.Join(dir, "notanumber.log"))

	logs, err := ListLogs(dir)
	require.NoError(t, err)

	nums := make([]pebble.FileNum, 0, len(logs))
	for _, l := range logs {
		nums = append(nums, l.Num)
	}
	assert.Equal(t, []pebble.FileNum{3, 7, 12}, nums)
	assert.Equal(t, filepath.Join(dir, "archive", "000003.log"), logs[0].Path)
}

func TestListLogs_MissingDir(t *testing.T) {
	logs, err := ListLogs(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestNewLogReader_NonExistentFile(t *testing.T) {
	reader, err := NewLogReader(LogReaderConfig{
		File: LogFile{Num: 1, Path: "/non/existent/000001.log"},
	})
	assert.Error(t, err)
	assert.Nil(t, reader)
}

func TestNewLogReader_FallsBackToArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "archive")
	touch(t, filepath.Join(archive, "000004.log"))

	reader, err := NewLogReader(LogReaderConfig{
		File:       LogFile{Num: 4, Path: filepath.Join(dir, "000004.log")},
		ArchiveDir: archive,
	})
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadNext()
	assert.Equal(t, io.EOF, err)
}

func TestLogReader_ReadNext_Garbage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000009.log")
	require.NoError(t, os.WriteFile(path, []byte("this is not a log file at all"), 0600))

	reader, err := NewLogReader(LogReaderConfig{File: LogFile{Num: 9, Path: path}})
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.ReadNext()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, reader.Count())
}
