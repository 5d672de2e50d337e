//go:build fuzz
// +build fuzz

package codec

import (
	"bytes"
	"testing"
)

// FuzzEncodeKey_RoundTrip checks that encoding never loses the id or the key
func FuzzEncodeKey_RoundTrip(f *testing.F) {
	f.Add(uint32(1024), []byte(""))
	f.Add(uint32(0), []byte("huobi.btc.usdt.1m"))
	f.Add(uint32(0xFFFFFFFE), []byte{0xFF, 0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, id uint32, key []byte) {
		encoded := EncodeKey(TableID(id), key)

		if got := DecodeTableID(encoded); got != TableID(id) {
			t.Fatalf("table id mismatch: got %d, want %d", got, id)
		}
		if got := DecodeUserKey(encoded); !bytes.Equal(got, key) {
			t.Fatalf("key mismatch: got %x, want %x", got, key)
		}
		if CheckUserKey(key, DefaultMaxKeyLen) == nil && bytes.Compare(encoded, Anchor(TableID(id), DefaultMaxKeyLen)) >= 0 {
			t.Fatalf("accepted key %x does not sort before the anchor", key)
		}
	})
}

// FuzzDecodeDeleteRangeHint makes sure arbitrary payloads never panic
func FuzzDecodeDeleteRangeHint(f *testing.F) {
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 4, 0, 0, 4, 0, 0, 0, 4, 1})
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, key []byte) {
		from, to, err := DecodeDeleteRangeHint(key)
		if err != nil {
			return
		}
		if !bytes.Equal(EncodeDeleteRangeHint(from, to), key) {
			t.Fatalf("hint %x did not re-encode to itself", key)
		}
	})
}
