package codec

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKey(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 4, 0, 0, 0, 0, 0}, EncodeKey(1024, []byte{0, 0, 0, 0}))
	assert.Equal(t, []byte{0, 0, 4, 1}, EncodeKey(1025, nil))
}

func TestEncodeKey_RoundTrip(t *testing.T) {
	ids := []TableID{NameToIDTableID, IDToNameTableID, MinUserlandTableID, 70000, MaxUserlandTableID}
	keys := [][]byte{nil, []byte("k"), []byte("k111"), {0x00, 0xFF, 0x10}}

	for _, id := range ids {
		for _, key := range keys {
			encoded := EncodeKey(id, key)
			assert.Equal(t, id, DecodeTableID(encoded))
			assert.True(t, bytes.Equal(key, DecodeUserKey(encoded)), "id=%d key=%x", id, key)

			splitID, userKey, err := SplitKey(encoded)
			require.NoError(t, err)
			assert.Equal(t, id, splitID)
			assert.True(t, bytes.Equal(key, userKey))
		}
	}
}

func TestDecodeUserKey_Copies(t *testing.T) {
	encoded := []byte{0, 0, 4, 0, 0, 0, 0, 128, 0, 254}
	key := DecodeUserKey(encoded)
	assert.Equal(t, []byte{0, 0, 0, 128, 0, 254}, key)

	key[0] = 9
	assert.Equal(t, byte(0), encoded[4])
}

func TestSplitKey_TooShort(t *testing.T) {
	_, _, err := SplitKey([]byte{0, 0, 1})
	assert.True(t, errors.Is(err, ErrKeyTooShort))
}

func TestTableIDOrdering(t *testing.T) {
	// big-endian ids keep numeric order as byte order
	a := EncodeKey(1024, []byte{0xFF, 0xFF})
	b := EncodeKey(1025, nil)
	c := EncodeKey(256*1024, nil)
	assert.Equal(t, -1, bytes.Compare(a, b))
	assert.Equal(t, -1, bytes.Compare(b, c))
}

func TestRegistryLayout(t *testing.T) {
	t.Run("name to id key", func(t *testing.T) {
		assert.Equal(t,
			[]byte{0, 0, 0, 0, 104, 117, 111, 98, 105, 46, 98, 116, 99, 46, 117, 115, 100, 116, 46, 49, 109},
			NameToIDKey("huobi.btc.usdt.1m"))
	})

	t.Run("id to name key", func(t *testing.T) {
		assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 4, 0}, IDToNameKey(1024))
	})

	t.Run("id to name anchor", func(t *testing.T) {
		assert.Equal(t, []byte{0, 0, 0, 1, 255, 255, 255, 255}, IDToNameAnchor())
	})

	t.Run("name to id anchor", func(t *testing.T) {
		anchor := NameToIDAnchor()
		require.Len(t, anchor, 4+1025)
		assert.Equal(t, []byte{0, 0, 0, 0}, anchor[:4])
		assert.Equal(t, bytes.Repeat([]byte{0xFF}, 1025), anchor[4:])
	})

	t.Run("userland anchor", func(t *testing.T) {
		assert.Equal(t, []byte{0, 0, 4, 0, 255, 255, 255, 255, 255}, Anchor(1024, 4))
	})

	t.Run("info key", func(t *testing.T) {
		assert.Equal(t, []byte{0, 0, 0, 2, 0, 1}, InfoKey(CounterItem))
	})
}

func TestAnchor_SortsAfterShortKeys(t *testing.T) {
	const maxKeyLen = 4
	anchor := Anchor(1024, maxKeyLen)
	keys := [][]byte{
		nil,
		{0x00},
		[]byte("k111"),
		{0xFF},
		{0xFF, 0xFF, 0xFF, 0xFF},
		{0xFF, 0xFF, 0xFF, 0xFE},
	}
	for _, key := range keys {
		assert.Equal(t, -1, bytes.Compare(EncodeKey(1024, key), anchor), "key %x", key)
		assert.NoError(t, CheckUserKey(key, maxKeyLen))
	}

	// the next table starts after the anchor
	assert.Equal(t, -1, bytes.Compare(anchor, EncodeKey(1025, nil)))
}

func TestCheckUserKey(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{"longer key with low first byte", []byte("a-much-longer-key"), false},
		{"equal to anchor suffix", bytes.Repeat([]byte{0xFF}, 5), true},
		{"past anchor suffix", bytes.Repeat([]byte{0xFF}, 6), true},
		{"all ones at max length", bytes.Repeat([]byte{0xFF}, 4), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckUserKey(tt.key, 4)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrKeyOutOfRange))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeleteRangeHint(t *testing.T) {
	from := EncodeKey(1024, []byte("a"))
	to := Anchor(1024, 4)

	hint := EncodeDeleteRangeHint(from, to)
	assert.True(t, IsDeleteRangeHint(hint))
	assert.Equal(t, DeleteRangeHintTableID, DecodeTableID(hint))

	gotFrom, gotTo, err := DecodeDeleteRangeHint(hint)
	require.NoError(t, err)
	assert.Equal(t, from, gotFrom)
	assert.Equal(t, to, gotTo)

	assert.False(t, IsDeleteRangeHint(from))
	assert.False(t, IsDeleteRangeHint([]byte{0xFF}))
}

func TestDecodeDeleteRangeHint_Malformed(t *testing.T) {
	valid := EncodeDeleteRangeHint(EncodeKey(1024, nil), EncodeKey(1025, nil))

	tests := []struct {
		name string
		key  []byte
	}{
		{"too short for table id", []byte{0xFF, 0xFF}},
		{"wrong table", EncodeKey(1024, []byte{0, 0, 0, 4, 1, 2, 3, 4})},
		{"missing length", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00}},
		{"length overruns payload", []byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 9, 1, 2}},
		{"inner key too short", EncodeDeleteRangeHint([]byte{0, 0}, EncodeKey(1025, nil))},
		{"truncated to key", valid[:len(valid)-1]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeDeleteRangeHint(tt.key)
			assert.ErrorIs(t, err, ErrMalformedHint)
		})
	}
}

func TestTableID_IsUserland(t *testing.T) {
	assert.False(t, NameToIDTableID.IsUserland())
	assert.False(t, TableID(1023).IsUserland())
	assert.True(t, MinUserlandTableID.IsUserland())
	assert.True(t, MaxUserlandTableID.IsUserland())
	assert.False(t, DeleteRangeHintTableID.IsUserland())
}
