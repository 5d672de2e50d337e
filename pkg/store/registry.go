package store

import (
	"encoding/binary"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/ssargent/tablekv/pkg/codec"
	"github.com/ssargent/tablekv/pkg/metrics"
	"github.com/ssargent/tablekv/pkg/storage"
)

// nameLockShards bounds how many creations can be in flight at once.
const nameLockShards = 64

// TableInfo is one entry of the id -> name registry.
type TableInfo struct {
	Name string        `json:"name"`
	ID   codec.TableID `json:"id"`
}

// registry maps names to ids and caches open handles. All persisted state
// lives in tables 0, 1 and 2 of the engine.
type registry struct {
	engine    *storage.Engine
	maxKeyLen int
	log       zerolog.Logger
	metrics   *metrics.Metrics

	mu     sync.RWMutex
	tables map[string]*Table

	nameLocks [nameLockShards]sync.Mutex
	allocMu   sync.Mutex
}

func newRegistry(engine *storage.Engine, maxKeyLen int, log zerolog.Logger, m *metrics.Metrics) *registry {
	return &registry{
		engine:    engine,
		maxKeyLen: maxKeyLen,
		log:       log,
		metrics:   m,
		tables:    make(map[string]*Table),
	}
}

// bootstrap writes the registry anchors and the key-length convention on
// first open, and verifies the convention on every later open.
func (r *registry) bootstrap() error {
	keyLenKey := codec.InfoKey(codec.KeyLenItem)
	stored, ok, err := r.engine.Get(keyLenKey)
	if err != nil {
		return errors.Wrap(err, "read key length convention")
	}
	if ok {
		if len(stored) != 2 {
			return errors.Wrapf(ErrCorruptEntry, "key length item has %d bytes", len(stored))
		}
		if got := int(binary.BigEndian.Uint16(stored)); got != r.maxKeyLen {
			return errors.Wrapf(ErrKeyLenMismatch, "persisted %d, configured %d", got, r.maxKeyLen)
		}
		return nil
	}

	var keyLen [2]byte
	binary.BigEndian.PutUint16(keyLen[:], uint16(r.maxKeyLen))

	b := r.engine.NewBatch()
	nameAnchor := codec.NameToIDAnchor()
	idAnchor := codec.IDToNameAnchor()
	_ = b.Set(nameAnchor, nameAnchor, nil)
	_ = b.Set(idAnchor, idAnchor, nil)
	_ = b.Set(keyLenKey, keyLen[:], nil)
	if err := r.engine.Write(b); err != nil {
		return errors.Wrap(err, "bootstrap registry")
	}
	r.log.Info().Int("max_key_len", r.maxKeyLen).Msg("registry initialized")
	return nil
}

func validateName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidName, "empty name")
	}
	if len(name) > maxTableNameLen {
		return errors.Wrapf(ErrInvalidName, "name is %d bytes, limit %d", len(name), maxTableNameLen)
	}
	if !utf8.ValidString(name) {
		return errors.Wrap(ErrInvalidName, "name is not valid utf-8")
	}
	return nil
}

// lockNames takes the shard locks covering names in ascending shard order
// and returns the matching unlock.
func (r *registry) lockNames(names ...string) func() {
	shards := make([]int, 0, len(names))
	seen := make(map[int]bool, len(names))
	for _, name := range names {
		s := int(xxhash.Sum64String(name) % nameLockShards)
		if !seen[s] {
			seen[s] = true
			shards = append(shards, s)
		}
	}
	sort.Ints(shards)
	for _, s := range shards {
		r.nameLocks[s].Lock()
	}
	return func() {
		for i := len(shards) - 1; i >= 0; i-- {
			r.nameLocks[shards[i]].Unlock()
		}
	}
}

func (r *registry) cached(name string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[name]
	return t, ok
}

func (r *registry) evict(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		delete(r.tables, name)
	}
}

func (r *registry) lookupID(name string) (codec.TableID, bool, error) {
	value, ok, err := r.engine.Get(codec.NameToIDKey(name))
	if err != nil || !ok {
		return 0, false, err
	}
	if len(value) != codec.TableIDLen {
		return 0, false, errors.Wrapf(ErrCorruptEntry, "id for %q has %d bytes", name, len(value))
	}
	return codec.DecodeTableID(value), true, nil
}

func (r *registry) lookupName(id codec.TableID) (string, bool, error) {
	value, ok, err := r.engine.Get(codec.IDToNameKey(id))
	if err != nil || !ok {
		return "", false, err
	}
	return string(value), true, nil
}

// open returns the cached handle for name, creating the table if needed.
func (r *registry) open(name string) (*Table, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if t, ok := r.cached(name); ok {
		r.metrics.RecordCacheLookup(true)
		return t, nil
	}
	r.metrics.RecordCacheLookup(false)

	unlock := r.lockNames(name)
	defer unlock()

	if t, ok := r.cached(name); ok {
		return t, nil
	}

	id, ok, err := r.lookupID(name)
	if err != nil {
		return nil, errors.Wrapf(err, "look up table %q", name)
	}
	if !ok {
		id, err = r.create(name)
		if err != nil {
			return nil, err
		}
	}

	t := newTable(r.engine, id, r.maxKeyLen, r.metrics)
	r.mu.Lock()
	r.tables[name] = t
	r.mu.Unlock()
	return t, nil
}

// create allocates the next id and registers name under it. The caller
// holds the shard lock for name.
func (r *registry) create(name string) (codec.TableID, error) {
	r.allocMu.Lock()
	defer r.allocMu.Unlock()

	counterKey := codec.InfoKey(codec.CounterItem)
	last, ok, err := r.engine.Get(counterKey)
	if err != nil {
		return 0, errors.Wrap(err, "read table id counter")
	}

	id := codec.MinUserlandTableID
	if ok {
		if len(last) != codec.TableIDLen {
			return 0, errors.Wrapf(ErrCorruptEntry, "id counter has %d bytes", len(last))
		}
		lastID := codec.DecodeTableID(last)
		if lastID >= codec.MaxUserlandTableID {
			r.log.Error().Uint32("last_id", uint32(lastID)).Str("table", name).Msg("table ids exhausted")
			return 0, ErrTableIDsExhausted
		}
		id = lastID + 1
	}

	idBytes := id.Bytes()
	anchor := codec.Anchor(id, r.maxKeyLen)

	b := r.engine.NewBatch()
	_ = b.Set(counterKey, idBytes, nil)
	_ = b.Set(codec.NameToIDKey(name), idBytes, nil)
	_ = b.Set(codec.IDToNameKey(id), []byte(name), nil)
	_ = b.Set(anchor, anchor, nil)
	if err := r.engine.Write(b); err != nil {
		return 0, errors.Wrapf(err, "create table %q", name)
	}

	r.metrics.RecordTableCreated()
	r.log.Info().Str("table", name).Uint32("id", uint32(id)).Msg("table created")
	return id, nil
}

func (r *registry) rename(oldName, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}

	unlock := r.lockNames(oldName, newName)
	defer unlock()

	id, ok, err := r.lookupID(oldName)
	if err != nil {
		return errors.Wrapf(err, "look up table %q", oldName)
	}
	if !ok {
		return nil
	}
	_, taken, err := r.lookupID(newName)
	if err != nil {
		return errors.Wrapf(err, "look up table %q", newName)
	}
	if taken {
		return errors.Wrapf(ErrTableExists, "rename %q to %q", oldName, newName)
	}

	idBytes := id.Bytes()
	b := r.engine.NewBatch()
	_ = b.Delete(codec.NameToIDKey(oldName), nil)
	_ = b.Delete(codec.IDToNameKey(id), nil)
	_ = b.Set(codec.NameToIDKey(newName), idBytes, nil)
	_ = b.Set(codec.IDToNameKey(id), []byte(newName), nil)
	if err := r.engine.Write(b); err != nil {
		return errors.Wrapf(err, "rename %q to %q", oldName, newName)
	}

	r.evict(oldName, newName)
	r.log.Info().Str("from", oldName).Str("to", newName).Uint32("id", uint32(id)).Msg("table renamed")
	return nil
}

func (r *registry) destroy(name string) error {
	unlock := r.lockNames(name)
	defer unlock()

	id, ok, err := r.lookupID(name)
	if err != nil {
		return errors.Wrapf(err, "look up table %q", name)
	}
	if !ok {
		return nil
	}

	anchor := codec.Anchor(id, r.maxKeyLen)
	b := r.engine.NewBatch()
	_ = b.Delete(codec.NameToIDKey(name), nil)
	_ = b.Delete(codec.IDToNameKey(id), nil)
	_ = b.DeleteRange(id.Bytes(), anchor, nil)
	_ = b.Delete(anchor, nil)
	if err := r.engine.Write(b); err != nil {
		return errors.Wrapf(err, "destroy table %q", name)
	}

	r.evict(name)
	r.log.Info().Str("table", name).Uint32("id", uint32(id)).Msg("table destroyed")
	return nil
}

func (r *registry) list() ([]TableInfo, error) {
	iter, err := r.engine.NewIter(codec.IDToNameTableID.Bytes(), codec.IDToNameAnchor())
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var tables []TableInfo
	for iter.First(); iter.Valid(); iter.Next() {
		_, key, err := codec.SplitKey(iter.Key())
		if err != nil {
			return nil, err
		}
		if len(key) != codec.TableIDLen {
			return nil, errors.Wrapf(ErrCorruptEntry, "registry key %x", iter.Key())
		}
		tables = append(tables, TableInfo{
			Name: string(iter.Value()),
			ID:   codec.DecodeTableID(key),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "scan registry")
	}
	return tables, nil
}
