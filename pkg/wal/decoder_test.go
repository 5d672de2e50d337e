package wal

import (
	"encoding/binary"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/tablekv/pkg/codec"
)

// batchRepr returns the raw form of b as the log would hold it at seq.
func batchRepr(t *testing.T, b *pebble.Batch, seq uint64) []byte {
	t.Helper()
	repr := append([]byte(nil), b.Repr()...)
	binary.LittleEndian.PutUint64(repr, seq)
	return repr
}

func key(id codec.TableID, k string) []byte {
	return codec.EncodeKey(id, []byte(k))
}

func TestDecodeBatch_PutAndDelete(t *testing.T) {
	b := new(pebble.Batch)
	require.NoError(t, b.Set(key(1024, "k"), []byte("v"), nil))
	require.NoError(t, b.Delete(key(1024, "k"), nil))

	u, err := DecodeBatch(batchRepr(t, b, 42))
	require.NoError(t, err)

	assert.Equal(t, uint64(42), u.Seq)
	assert.Equal(t, uint32(2), u.Count)
	assert.Equal(t, uint64(44), u.NextSeq())
	assert.Equal(t, []Update{
		{Kind: KindPut, Key: key(1024, "k"), Value: []byte("v")},
		{Kind: KindDelete, Key: key(1024, "k")},
	}, u.Ops)
}

func TestDecodeBatch_DeleteKinds(t *testing.T) {
	b := new(pebble.Batch)
	require.NoError(t, b.SingleDelete(key(1024, "a"), nil))
	require.NoError(t, b.DeleteSized(key(1024, "b"), 10, nil))

	u, err := DecodeBatch(batchRepr(t, b, 1))
	require.NoError(t, err)
	require.Len(t, u.Ops, 2)
	assert.Equal(t, KindDelete, u.Ops[0].Kind)
	assert.Equal(t, KindDelete, u.Ops[1].Kind)
	assert.Equal(t, key(1024, "b"), u.Ops[1].Key)
}

func TestDecodeBatch_DeleteRangeHint(t *testing.T) {
	from, to := key(1024, "a"), key(1024, "z")

	b := new(pebble.Batch)
	require.NoError(t, b.Delete(codec.EncodeDeleteRangeHint(from, to), nil))

	u, err := DecodeBatch(batchRepr(t, b, 7))
	require.NoError(t, err)
	assert.Equal(t, []Update{{Kind: KindDeleteRange, From: from, To: to}}, u.Ops)
	assert.Equal(t, codec.TableID(1024), u.Ops[0].TableID())
}

func TestDecodeBatch_MalformedHint(t *testing.T) {
	b := new(pebble.Batch)
	require.NoError(t, b.Delete([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x09, 0x01}, nil))

	_, err := DecodeBatch(batchRepr(t, b, 7))
	assert.ErrorIs(t, err, codec.ErrMalformedHint)
}

func TestDecodeBatch_NativeRangeDelete(t *testing.T) {
	b := new(pebble.Batch)
	require.NoError(t, b.DeleteRange(key(1024, "a"), key(1024, "m"), nil))

	u, err := DecodeBatch(batchRepr(t, b, 3))
	require.NoError(t, err)
	assert.Equal(t, []Update{{Kind: KindDeleteRange, From: key(1024, "a"), To: key(1024, "m")}}, u.Ops)
}

func TestDecodeBatch_SkipsLogData(t *testing.T) {
	b := new(pebble.Batch)
	require.NoError(t, b.LogData([]byte("annotation"), nil))
	require.NoError(t, b.Set(key(1024, "k"), []byte("v"), nil))

	u, err := DecodeBatch(batchRepr(t, b, 3))
	require.NoError(t, err)
	require.Len(t, u.Ops, 1)
	assert.Equal(t, KindPut, u.Ops[0].Kind)
}

func TestDecodeBatch_UnsupportedKind(t *testing.T) {
	b := new(pebble.Batch)
	require.NoError(t, b.Merge(key(1024, "k"), []byte("v"), nil))

	_, err := DecodeBatch(batchRepr(t, b, 3))
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestDecodeBatch_Invalid(t *testing.T) {
	_, err := DecodeBatch([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidBatch)

	b := new(pebble.Batch)
	require.NoError(t, b.Set(key(1024, "k"), []byte("v"), nil))
	repr := batchRepr(t, b, 3)

	_, err = DecodeBatch(repr[:len(repr)-1])
	assert.ErrorIs(t, err, ErrInvalidBatch)

	// a set record whose key length overruns the body
	_, err = DecodeBatch(append(make([]byte, batchHeaderLen), byte(pebble.InternalKeyKindSet), 0x05))
	assert.ErrorIs(t, err, ErrInvalidBatch)
	assert.Contains(t, err.Error(), "batch at seq 0")
}

func TestDecodeBatch_Empty(t *testing.T) {
	u, err := DecodeBatch(make([]byte, batchHeaderLen))
	require.NoError(t, err)
	assert.Empty(t, u.Ops)
	assert.Equal(t, uint32(0), u.Count)
}

func TestKind_Text(t *testing.T) {
	for _, k := range []Kind{KindPut, KindDelete, KindDeleteRange} {
		text, err := k.MarshalText()
		require.NoError(t, err)

		var got Kind
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, k, got)
	}

	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("merge")))
	assert.Equal(t, "kind(9)", Kind(9).String())
}
