package store

import (
	"bytes"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/ssargent/tablekv/pkg/codec"
)

// Batch buffers writes to one table until Table.Write commits them. It is
// not safe for concurrent use.
type Batch struct {
	inner     *pebble.Batch
	id        codec.TableID
	maxKeyLen int
}

func newBatch(inner *pebble.Batch, id codec.TableID, maxKeyLen int) *Batch {
	return &Batch{inner: inner, id: id, maxKeyLen: maxKeyLen}
}

// Put buffers a write of value under key
func (b *Batch) Put(key, value []byte) error {
	if b.inner == nil {
		return ErrBatchConsumed
	}
	if err := codec.CheckUserKey(key, b.maxKeyLen); err != nil {
		return err
	}
	return b.inner.Set(codec.EncodeKey(b.id, key), value, nil)
}

// Delete buffers a delete of key
func (b *Batch) Delete(key []byte) error {
	if b.inner == nil {
		return ErrBatchConsumed
	}
	if err := codec.CheckUserKey(key, b.maxKeyLen); err != nil {
		return err
	}
	return b.inner.Delete(codec.EncodeKey(b.id, key), nil)
}

// DeleteRange buffers a delete of every key in [from, to). to may be the
// anchor suffix, which clears everything from from to the end of the table.
func (b *Batch) DeleteRange(from, to []byte) error {
	if b.inner == nil {
		return ErrBatchConsumed
	}
	if err := codec.CheckUserKey(from, b.maxKeyLen); err != nil {
		return err
	}
	if bytes.Compare(to, codec.AnchorSuffix(b.maxKeyLen)) > 0 {
		return errors.Wrapf(ErrKeyOutOfRange, "range end %x with max key length %d", to, b.maxKeyLen)
	}
	return b.inner.DeleteRange(codec.EncodeKey(b.id, from), codec.EncodeKey(b.id, to), nil)
}

// Clear buffers a delete of every record in the table, leaving the anchor.
func (b *Batch) Clear() error {
	if b.inner == nil {
		return ErrBatchConsumed
	}
	return b.inner.DeleteRange(b.id.Bytes(), codec.Anchor(b.id, b.maxKeyLen), nil)
}

// Count returns the number of buffered operations
func (b *Batch) Count() uint32 {
	if b.inner == nil {
		return 0
	}
	return b.inner.Count()
}

// Close discards the batch without writing it
func (b *Batch) Close() error {
	if b.inner == nil {
		return nil
	}
	err := b.inner.Close()
	b.inner = nil
	return err
}

// take hands the buffered batch to the writer exactly once
func (b *Batch) take() (*pebble.Batch, error) {
	if b.inner == nil {
		return nil, ErrBatchConsumed
	}
	inner := b.inner
	b.inner = nil
	return inner, nil
}
