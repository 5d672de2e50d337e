// Package storage wraps the pebble engine that holds the flat keyspace.
package storage

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	"github.com/rs/zerolog"
)

// ArchiveDirName is where obsolete WAL files are kept for change streams.
const ArchiveDirName = "archive"

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("storage engine is closed")

// Options tunes the engine. None of it affects key encoding.
type Options struct {
	CacheSize                   int64
	MemTableSize                uint64
	MemTableStopWritesThreshold int
	MaxConcurrentCompactions    int
	L0CompactionThreshold       int
	L0StopWritesThreshold       int
	BytesPerSync                int
	WALBytesPerSync             int
	WALMinSyncInterval          time.Duration
	WALDir                      string
	DisableAutomaticCompactions bool
	// Sync makes every commit wait for the WAL fsync.
	Sync   bool
	Logger zerolog.Logger
}

// DefaultOptions returns options suitable for a single local database.
func DefaultOptions() Options {
	return Options{
		CacheSize:                   64 << 20,
		MemTableSize:                64 << 20,
		MemTableStopWritesThreshold: 4,
		MaxConcurrentCompactions:    2,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
		BytesPerSync:                512 << 10,
		Sync:                        true,
		Logger:                      zerolog.Nop(),
	}
}

// pebbleLogger routes pebble's own logging through zerolog
type pebbleLogger struct {
	log zerolog.Logger
}

func (l pebbleLogger) Infof(format string, args ...interface{}) {
	l.log.Debug().Msgf("[pebble] "+format, args...)
}

func (l pebbleLogger) Fatalf(format string, args ...interface{}) {
	l.log.Fatal().Msgf("[pebble] "+format, args...)
}

// Engine is the ordered key-value store every table lives in.
type Engine struct {
	db        *pebble.DB
	dir       string
	walDir    string
	writeOpts *pebble.WriteOptions
	log       zerolog.Logger
}

// Open opens or creates the engine rooted at dir.
func Open(dir string, opts Options) (*Engine, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "create data dir %s", dir)
	}

	cache := pebble.NewCache(opts.CacheSize)
	defer cache.Unref()

	maxCompactions := opts.MaxConcurrentCompactions
	pebbleOpts := &pebble.Options{
		Cache:                       cache,
		MemTableSize:                opts.MemTableSize,
		MemTableStopWritesThreshold: opts.MemTableStopWritesThreshold,
		L0CompactionThreshold:       opts.L0CompactionThreshold,
		L0StopWritesThreshold:       opts.L0StopWritesThreshold,
		BytesPerSync:                opts.BytesPerSync,
		WALBytesPerSync:             opts.WALBytesPerSync,
		WALDir:                      opts.WALDir,
		DisableAutomaticCompactions: opts.DisableAutomaticCompactions,
		// archived logs stay readable by change streams and are never recycled
		Cleaner: pebble.ArchiveCleaner{},
		Logger:  pebbleLogger{log: opts.Logger},
		Levels: []pebble.LevelOptions{
			{FilterPolicy: bloom.FilterPolicy(10)},
		},
	}
	if maxCompactions > 0 {
		pebbleOpts.MaxConcurrentCompactions = func() int { return maxCompactions }
	}
	if opts.WALMinSyncInterval > 0 {
		interval := opts.WALMinSyncInterval
		pebbleOpts.WALMinSyncInterval = func() time.Duration { return interval }
	}

	db, err := pebble.Open(dir, pebbleOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %s", dir)
	}

	walDir := opts.WALDir
	if walDir == "" {
		walDir = dir
	}

	writeOpts := pebble.NoSync
	if opts.Sync {
		writeOpts = pebble.Sync
	}

	opts.Logger.Debug().Str("dir", dir).Str("wal_dir", walDir).Bool("sync", opts.Sync).Msg("engine opened")

	return &Engine{db: db, dir: dir, walDir: walDir, writeOpts: writeOpts, log: opts.Logger}, nil
}

// Destroy removes every file of the engine rooted at dir.
func Destroy(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "destroy %s", dir)
	}
	return nil
}

// Dir returns the data directory.
func (e *Engine) Dir() string {
	return e.dir
}

// WALDir returns the directory holding the write-ahead log.
func (e *Engine) WALDir() string {
	return e.walDir
}

// ArchiveDir returns the directory obsolete WAL files are moved to.
func (e *Engine) ArchiveDir() string {
	return filepath.Join(e.walDir, ArchiveDirName)
}

// Get returns a copy of the value stored under key. ok is false when the
// key does not exist.
func (e *Engine) Get(key []byte) (value []byte, ok bool, err error) {
	if e.db == nil {
		return nil, false, ErrClosed
	}
	data, closer, err := e.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()

	value = make([]byte, len(data))
	copy(value, data)
	return value, true, nil
}

// Set writes a single record.
func (e *Engine) Set(key, value []byte) error {
	if e.db == nil {
		return ErrClosed
	}
	return e.db.Set(key, value, e.writeOpts)
}

// Delete removes a single record.
func (e *Engine) Delete(key []byte) error {
	if e.db == nil {
		return ErrClosed
	}
	return e.db.Delete(key, e.writeOpts)
}

// NewBatch starts an empty write batch. On a closed engine the batch is
// detached and Write reports ErrClosed.
func (e *Engine) NewBatch() *pebble.Batch {
	if e.db == nil {
		return new(pebble.Batch)
	}
	return e.db.NewBatch()
}

// Write commits b atomically and releases it.
func (e *Engine) Write(b *pebble.Batch) error {
	if e.db == nil {
		return ErrClosed
	}
	defer b.Close()
	return b.Commit(e.writeOpts)
}

// NewIter returns a raw cursor over [lower, upper). A nil bound is open.
func (e *Engine) NewIter(lower, upper []byte) (*pebble.Iterator, error) {
	if e.db == nil {
		return nil, ErrClosed
	}
	return e.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
}

// Flush writes the memtable to disk and rotates the WAL.
func (e *Engine) Flush() error {
	if e.db == nil {
		return ErrClosed
	}
	return e.db.Flush()
}

// Metrics exposes the engine's internal counters.
// It returns nil once the engine is closed.
func (e *Engine) Metrics() *pebble.Metrics {
	if e.db == nil {
		return nil
	}
	return e.db.Metrics()
}

// Close releases the engine. It is safe to call more than once.
func (e *Engine) Close() error {
	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	e.log.Debug().Str("dir", e.dir).Msg("engine closed")
	return err
}

var _ io.Closer = (*Engine)(nil)
