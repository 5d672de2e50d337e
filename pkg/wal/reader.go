package wal

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/record"
	"github.com/ssargent/tablekv/pkg/storage"
)

const logSuffix = ".log"

// LogFile is one write-ahead log file of the engine.
type LogFile struct {
	Num  pebble.FileNum
	Path string
}

// ListLogs returns the log files in dir and its archive, ordered by file
// number. A missing directory yields no files.
func ListLogs(dir string) ([]LogFile, error) {
	var logs []LogFile
	seen := make(map[pebble.FileNum]bool)
	for _, d := range []string{dir, filepath.Join(dir, storage.ArchiveDirName)} {
		entries, err := os.ReadDir(d)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "list %s", d)
		}
		for _, entry := range entries {
			num, ok := parseLogName(entry.Name())
			if !ok || entry.IsDir() || seen[num] {
				continue
			}
			seen[num] = true
			logs = append(logs, LogFile{Num: num, Path: filepath.Join(d, entry.Name())})
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].Num < logs[j].Num })
	return logs, nil
}

func parseLogName(name string) (pebble.FileNum, bool) {
	if !strings.HasSuffix(name, logSuffix) {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimSuffix(name, logSuffix), 10, 64)
	if err != nil {
		return 0, false
	}
	return pebble.FileNum(n), true
}

// LogReaderConfig selects the file a LogReader opens.
type LogReaderConfig struct {
	File LogFile
	// ArchiveDir is tried when File.Path has been archived since listing.
	ArchiveDir string
}

// LogReader provides sequential access to the batches in one log file.
type LogReader struct {
	file   *os.File
	reader *record.Reader
	config LogReaderConfig
	count  int
}

// NewLogReader opens the configured log file.
func NewLogReader(config LogReaderConfig) (*LogReader, error) {
	file, err := os.Open(config.File.Path)
	if errors.Is(err, os.ErrNotExist) && config.ArchiveDir != "" {
		file, err = os.Open(filepath.Join(config.ArchiveDir, filepath.Base(config.File.Path)))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open log %s", config.File.Path)
	}

	return &LogReader{
		file:   file,
		reader: record.NewReader(file, config.File.Num),
		config: config,
	}, nil
}

// ReadNext returns the next raw batch, or io.EOF once the readable part of
// the file is exhausted. A torn or recycled tail counts as the end.
func (r *LogReader) ReadNext() ([]byte, error) {
	rec, err := r.reader.Next()
	if err == io.EOF || record.IsInvalidRecord(err) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read log %s", r.config.File.Path)
	}

	repr, err := io.ReadAll(rec)
	if err != nil {
		if record.IsInvalidRecord(err) {
			return nil, io.EOF
		}
		return nil, errors.Wrapf(err, "read log %s", r.config.File.Path)
	}
	r.count++
	return repr, nil
}

// Count returns the number of batches read so far.
func (r *LogReader) Count() int {
	return r.count
}

// Close closes the log file
func (r *LogReader) Close() error {
	return r.file.Close()
}
