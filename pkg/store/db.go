// Package store layers named tables over a single ordered key-value engine.
//
// A DB owns one storage.Engine. Tables are created on first open, receive a
// never-reused id from a persisted counter, and are addressed by that id for
// the rest of their life. Renaming a table only touches the registry; its
// records stay where they are.
package store

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/ssargent/tablekv/pkg/codec"
	"github.com/ssargent/tablekv/pkg/storage"
	"github.com/ssargent/tablekv/pkg/wal"
)

// maxKeyLenLimit keeps the anchor suffix length inside a uint16.
const maxKeyLenLimit = 0xFFFE

// DB is a set of named tables sharing one engine.
type DB struct {
	mu       sync.RWMutex
	engine   *storage.Engine
	registry *registry
	opts     Options
	log      zerolog.Logger
}

// Open opens or creates the database at path.
func Open(path string, opts Options) (*DB, error) {
	if opts.MaxKeyLen == 0 {
		opts.MaxKeyLen = codec.DefaultMaxKeyLen
	}
	if opts.MaxKeyLen < 0 || opts.MaxKeyLen > maxKeyLenLimit {
		return nil, errors.Newf("max key length %d out of range [1, %d]", opts.MaxKeyLen, maxKeyLenLimit)
	}

	log := opts.Logger.With().Str("component", "store").Logger()
	if opts.Engine.Logger.GetLevel() == zerolog.Disabled {
		opts.Engine.Logger = log
	}

	engine, err := storage.Open(path, opts.Engine)
	if err != nil {
		return nil, err
	}

	reg := newRegistry(engine, opts.MaxKeyLen, log, opts.Metrics)
	if err := reg.bootstrap(); err != nil {
		return nil, errors.CombineErrors(err, engine.Close())
	}

	log.Info().Str("path", path).Int("max_key_len", opts.MaxKeyLen).Msg("database opened")
	return &DB{engine: engine, registry: reg, opts: opts, log: log}, nil
}

// Destroy removes the database at path. It must not be open.
func Destroy(path string) error {
	return storage.Destroy(path)
}

// Close releases the engine. Handles and iterators must not be used after.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.engine == nil {
		return nil
	}
	err := db.engine.Close()
	db.engine = nil
	db.log.Info().Msg("database closed")
	return err
}

func (db *DB) open() (*registry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.engine == nil {
		return nil, ErrStoreClosed
	}
	return db.registry, nil
}

// Engine exposes the underlying engine. It is nil after Close.
func (db *DB) Engine() *storage.Engine {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.engine
}

// MaxKeyLen returns the key-length convention anchors are built with.
func (db *DB) MaxKeyLen() int {
	return db.opts.MaxKeyLen
}

// OpenTable returns the handle for name, creating the table on first use.
func (db *DB) OpenTable(name string) (*Table, error) {
	reg, err := db.open()
	if err != nil {
		return nil, err
	}
	t, err := reg.open(name)
	reg.metrics.RecordRegistryOperation("open", err == nil)
	return t, err
}

// RenameTable moves a table to a new name, keeping its id and records.
// Renaming a missing table is a no-op.
func (db *DB) RenameTable(oldName, newName string) error {
	reg, err := db.open()
	if err != nil {
		return err
	}
	err = reg.rename(oldName, newName)
	reg.metrics.RecordRegistryOperation("rename", err == nil)
	return err
}

// DestroyTable unregisters a table and deletes all of its records.
// Destroying a missing table is a no-op.
func (db *DB) DestroyTable(name string) error {
	reg, err := db.open()
	if err != nil {
		return err
	}
	err = reg.destroy(name)
	reg.metrics.RecordRegistryOperation("destroy", err == nil)
	return err
}

// ListTables returns every registered table in ascending id order.
func (db *DB) ListTables() ([]TableInfo, error) {
	reg, err := db.open()
	if err != nil {
		return nil, err
	}
	tables, err := reg.list()
	reg.metrics.RecordRegistryOperation("list", err == nil)
	return tables, err
}

// TableID resolves a name without creating the table.
func (db *DB) TableID(name string) (codec.TableID, bool, error) {
	reg, err := db.open()
	if err != nil {
		return 0, false, err
	}
	return reg.lookupID(name)
}

// TableName resolves an id to its current name.
func (db *DB) TableName(id codec.TableID) (string, bool, error) {
	reg, err := db.open()
	if err != nil {
		return "", false, err
	}
	return reg.lookupName(id)
}

// Changes opens a change stream over this database's write-ahead log,
// starting at the first batch that reaches sequence number since.
func (db *DB) Changes(since uint64) (*wal.Stream, error) {
	reg, err := db.open()
	if err != nil {
		return nil, err
	}
	return wal.Open(wal.StreamConfig{
		Dir:     reg.engine.WALDir(),
		Since:   since,
		Logger:  db.log,
		Metrics: reg.metrics,
	})
}
