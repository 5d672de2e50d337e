package store

import (
	"github.com/cockroachdb/errors"
	"github.com/ssargent/tablekv/pkg/codec"
	"github.com/ssargent/tablekv/pkg/storage"
)

// Errors
var (
	ErrKeyNotFound   = errors.New("key not found")
	ErrInvalidName   = errors.New("invalid table name")
	ErrTableExists   = errors.New("table name already registered")
	ErrCorruptEntry  = errors.New("corrupt registry entry")
	ErrBatchConsumed = errors.New("batch already written or closed")

	// ErrKeyLenMismatch means the database was created with a different
	// key-length convention; anchors would not line up.
	ErrKeyLenMismatch = errors.New("max key length differs from the persisted convention")

	// ErrTableIDsExhausted is fatal: table ids are never reused, so no
	// further table can be created in this database.
	ErrTableIDsExhausted = errors.New("userland table ids exhausted")

	// ErrStoreClosed is the engine's closed error, so handles retained
	// past Close report it too.
	ErrStoreClosed = storage.ErrClosed

	// ErrKeyOutOfRange is re-exported from codec for callers of this package.
	ErrKeyOutOfRange = codec.ErrKeyOutOfRange
)
