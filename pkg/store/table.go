package store

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/tablekv/pkg/codec"
	"github.com/ssargent/tablekv/pkg/metrics"
	"github.com/ssargent/tablekv/pkg/storage"
)

// Table is a view of the engine scoped to one table id. It holds no engine
// state of its own and is safe for concurrent use.
type Table struct {
	engine    *storage.Engine
	id        codec.TableID
	anchor    []byte
	maxKeyLen int
	metrics   *metrics.Metrics
}

func newTable(engine *storage.Engine, id codec.TableID, maxKeyLen int, m *metrics.Metrics) *Table {
	return &Table{
		engine:    engine,
		id:        id,
		anchor:    codec.Anchor(id, maxKeyLen),
		maxKeyLen: maxKeyLen,
		metrics:   m,
	}
}

// ID returns the table id
func (t *Table) ID() codec.TableID {
	return t.id
}

// Anchor returns a copy of the encoded anchor key
func (t *Table) Anchor() []byte {
	return append([]byte(nil), t.anchor...)
}

func (t *Table) String() string {
	return fmt.Sprintf("id: %d, anchor: %x", t.id, t.anchor)
}

// Put stores value under key
func (t *Table) Put(key, value []byte) error {
	start := time.Now()
	err := t.put(key, value)
	t.metrics.RecordTableOperation("put", err == nil, time.Since(start))
	return err
}

func (t *Table) put(key, value []byte) error {
	if err := codec.CheckUserKey(key, t.maxKeyLen); err != nil {
		return err
	}
	if err := t.engine.Set(codec.EncodeKey(t.id, key), value); err != nil {
		return errors.Wrapf(err, "put into table %d", t.id)
	}
	return nil
}

// Get returns the value stored under key, or ErrKeyNotFound
func (t *Table) Get(key []byte) ([]byte, error) {
	start := time.Now()
	value, err := t.get(key)
	t.metrics.RecordTableOperation("get", err == nil || errors.Is(err, ErrKeyNotFound), time.Since(start))
	return value, err
}

func (t *Table) get(key []byte) ([]byte, error) {
	// the anchor is not user data
	if err := codec.CheckUserKey(key, t.maxKeyLen); err != nil {
		return nil, err
	}
	value, ok, err := t.engine.Get(codec.EncodeKey(t.id, key))
	if err != nil {
		return nil, errors.Wrapf(err, "get from table %d", t.id)
	}
	if !ok {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

// Delete removes key. Deleting a missing key succeeds.
func (t *Table) Delete(key []byte) error {
	start := time.Now()
	err := t.delete(key)
	t.metrics.RecordTableOperation("delete", err == nil, time.Since(start))
	return err
}

func (t *Table) delete(key []byte) error {
	// the anchor itself must survive point deletes
	if err := codec.CheckUserKey(key, t.maxKeyLen); err != nil {
		return err
	}
	if err := t.engine.Delete(codec.EncodeKey(t.id, key)); err != nil {
		return errors.Wrapf(err, "delete from table %d", t.id)
	}
	return nil
}

// Batch returns an empty batch bound to this table
func (t *Table) Batch() *Batch {
	return newBatch(t.engine.NewBatch(), t.id, t.maxKeyLen)
}

// Write commits b atomically. b cannot be used afterwards.
func (t *Table) Write(b *Batch) error {
	start := time.Now()
	err := t.write(b)
	t.metrics.RecordTableOperation("write", err == nil, time.Since(start))
	return err
}

func (t *Table) write(b *Batch) error {
	inner, err := b.take()
	if err != nil {
		return err
	}
	if err := t.engine.Write(inner); err != nil {
		return errors.Wrapf(err, "write batch to table %d", t.id)
	}
	return nil
}

// Iter returns a cursor bounded to this table. The caller must Close it.
func (t *Table) Iter() (*Iterator, error) {
	return newIterator(t.engine, t.id, t.anchor)
}
