package store

import (
	"bytes"

	"github.com/cockroachdb/pebble"
	"github.com/ssargent/tablekv/pkg/codec"
	"github.com/ssargent/tablekv/pkg/storage"
)

// Iterator walks the records of a single table in key order. The anchor is
// part of the underlying range but is never reported as valid.
//
// Key and Value point into engine-owned memory and stay valid only until the
// next positioning call.
type Iterator struct {
	inner  *pebble.Iterator
	start  []byte
	anchor []byte
}

func newIterator(engine *storage.Engine, id codec.TableID, anchor []byte) (*Iterator, error) {
	start := id.Bytes()
	upper := make([]byte, len(anchor)+1)
	copy(upper, anchor)

	inner, err := engine.NewIter(start, upper)
	if err != nil {
		return nil, err
	}
	return &Iterator{inner: inner, start: start, anchor: anchor}, nil
}

// Valid reports whether the cursor is on a user record
func (it *Iterator) Valid() bool {
	return it.inner.Valid() && !bytes.Equal(it.inner.Key(), it.anchor)
}

// SeekToFirst moves to the smallest key of the table
func (it *Iterator) SeekToFirst() bool {
	it.inner.SeekGE(it.start)
	return it.Valid()
}

// SeekToLast moves to the largest key of the table
func (it *Iterator) SeekToLast() bool {
	if it.inner.SeekGE(it.anchor) {
		it.inner.Prev()
	} else {
		it.inner.Last()
	}
	return it.Valid()
}

// Seek moves to the first key >= key
func (it *Iterator) Seek(key []byte) bool {
	it.inner.SeekGE(codec.EncodeKey(codec.DecodeTableID(it.start), key))
	return it.Valid()
}

// SeekForPrev moves to the last key <= key
func (it *Iterator) SeekForPrev(key []byte) bool {
	target := append(codec.EncodeKey(codec.DecodeTableID(it.start), key), 0x00)
	if it.inner.SeekLT(target) && bytes.Equal(it.inner.Key(), it.anchor) {
		it.inner.Prev()
	}
	return it.Valid()
}

// Next advances the cursor
func (it *Iterator) Next() bool {
	it.inner.Next()
	return it.Valid()
}

// Prev steps the cursor back
func (it *Iterator) Prev() bool {
	it.inner.Prev()
	return it.Valid()
}

// Key returns the user key at the cursor
func (it *Iterator) Key() []byte {
	return it.inner.Key()[codec.TableIDLen:]
}

// Value returns the value at the cursor
func (it *Iterator) Value() []byte {
	return it.inner.Value()
}

// Error returns the first error the cursor hit
func (it *Iterator) Error() error {
	return it.inner.Error()
}

// Close releases the cursor
func (it *Iterator) Close() error {
	return it.inner.Close()
}
