package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// TableID is the namespace prefix of every encoded key.
type TableID uint32

// TableIDLen is the encoded size of a TableID.
const TableIDLen = 4

// Reserved and userland table ids
const (
	NameToIDTableID        TableID = 0
	IDToNameTableID        TableID = 1
	InfoTableID            TableID = 2
	MinUserlandTableID     TableID = 1024
	MaxUserlandTableID     TableID = 0xFFFFFFFE
	DeleteRangeHintTableID TableID = 0xFFFFFFFF
)

// DefaultMaxKeyLen is the key-length convention used to build anchors when
// none is configured.
const DefaultMaxKeyLen = 4

// nameToIDAnchorLen covers registry names up to 1024 bytes.
const nameToIDAnchorLen = 1025

// Items stored in the info table
const (
	CounterItem uint16 = 1
	KeyLenItem  uint16 = 2
)

// hintLenPrefix is the size of the from-key length inside a hint payload.
const hintLenPrefix = 4

// Errors
var (
	ErrKeyTooShort   = errors.New("encoded key shorter than table id")
	ErrKeyOutOfRange = errors.New("user key sorts at or after table anchor")
	ErrMalformedHint = errors.New("malformed delete-range hint")
)

// Bytes returns the big-endian encoding of the id.
func (id TableID) Bytes() []byte {
	buf := make([]byte, TableIDLen)
	binary.BigEndian.PutUint32(buf, uint32(id))
	return buf
}

// IsUserland reports whether id lies in the allocatable range.
func (id TableID) IsUserland() bool {
	return id >= MinUserlandTableID && id <= MaxUserlandTableID
}

// EncodeKey prefixes a user key with its table id.
func EncodeKey(id TableID, key []byte) []byte {
	buf := make([]byte, TableIDLen+len(key))
	binary.BigEndian.PutUint32(buf, uint32(id))
	copy(buf[TableIDLen:], key)
	return buf
}

// DecodeTableID reads the table id of an encoded key. The key must be at
// least TableIDLen bytes long.
func DecodeTableID(encoded []byte) TableID {
	return TableID(binary.BigEndian.Uint32(encoded[:TableIDLen]))
}

// DecodeUserKey returns a copy of the user part of an encoded key.
func DecodeUserKey(encoded []byte) []byte {
	key := make([]byte, len(encoded)-TableIDLen)
	copy(key, encoded[TableIDLen:])
	return key
}

// SplitKey is the checked form of DecodeTableID and DecodeUserKey. The
// returned user key aliases encoded.
func SplitKey(encoded []byte) (TableID, []byte, error) {
	if len(encoded) < TableIDLen {
		return 0, nil, errors.Wrapf(ErrKeyTooShort, "key length %d", len(encoded))
	}
	return DecodeTableID(encoded), encoded[TableIDLen:], nil
}

// Anchor builds the sentinel key that closes a table's key range.
func Anchor(id TableID, maxKeyLen int) []byte {
	return EncodeKey(id, allOnes(maxKeyLen+1))
}

// AnchorSuffix is the user-key part of Anchor.
func AnchorSuffix(maxKeyLen int) []byte {
	return allOnes(maxKeyLen + 1)
}

// CheckUserKey fails when key would not sort strictly before the anchor
// built for maxKeyLen.
func CheckUserKey(key []byte, maxKeyLen int) error {
	if bytes.Compare(key, AnchorSuffix(maxKeyLen)) >= 0 {
		return errors.Wrapf(ErrKeyOutOfRange, "key %x with max key length %d", key, maxKeyLen)
	}
	return nil
}

// NameToIDKey is the registry key under which a table name maps to its id.
func NameToIDKey(name string) []byte {
	return EncodeKey(NameToIDTableID, []byte(name))
}

// IDToNameKey is the registry key under which a table id maps to its name.
func IDToNameKey(id TableID) []byte {
	return EncodeKey(IDToNameTableID, id.Bytes())
}

// NameToIDAnchor closes the name -> id registry table.
func NameToIDAnchor() []byte {
	return EncodeKey(NameToIDTableID, allOnes(nameToIDAnchorLen))
}

// IDToNameAnchor closes the id -> name registry table.
func IDToNameAnchor() []byte {
	return IDToNameKey(DeleteRangeHintTableID)
}

// InfoKey addresses one metadata item in the info table.
func InfoKey(item uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], item)
	return EncodeKey(InfoTableID, buf[:])
}

// EncodeDeleteRangeHint packs two encoded keys into a single key of the
// hint table.
func EncodeDeleteRangeHint(from, to []byte) []byte {
	buf := make([]byte, TableIDLen+hintLenPrefix+len(from)+len(to))
	binary.BigEndian.PutUint32(buf, uint32(DeleteRangeHintTableID))
	binary.BigEndian.PutUint32(buf[TableIDLen:], uint32(len(from)))
	n := copy(buf[TableIDLen+hintLenPrefix:], from)
	copy(buf[TableIDLen+hintLenPrefix+n:], to)
	return buf
}

// IsDeleteRangeHint reports whether an encoded key lives in the hint table.
func IsDeleteRangeHint(encoded []byte) bool {
	return len(encoded) >= TableIDLen && DecodeTableID(encoded) == DeleteRangeHintTableID
}

// DecodeDeleteRangeHint splits a hint key back into its two encoded keys.
// Both returned slices alias key.
func DecodeDeleteRangeHint(key []byte) (from, to []byte, err error) {
	id, payload, err := SplitKey(key)
	if err != nil {
		return nil, nil, errors.WithSecondaryError(errors.Wrap(ErrMalformedHint, "split hint key"), err)
	}
	if id != DeleteRangeHintTableID {
		return nil, nil, errors.Wrapf(ErrMalformedHint, "table id %d is not the hint table", id)
	}
	if len(payload) < hintLenPrefix {
		return nil, nil, errors.Wrapf(ErrMalformedHint, "payload length %d", len(payload))
	}
	n := binary.BigEndian.Uint32(payload)
	rest := payload[hintLenPrefix:]
	if uint64(n) > uint64(len(rest)) {
		return nil, nil, errors.Wrapf(ErrMalformedHint, "from length %d exceeds payload %d", n, len(rest))
	}
	from, to = rest[:n], rest[n:]
	if len(from) < TableIDLen || len(to) < TableIDLen {
		return nil, nil, errors.Wrap(ErrMalformedHint, "inner key shorter than table id")
	}
	return from, to, nil
}

func allOnes(n int) []byte {
	return bytes.Repeat([]byte{0xFF}, n)
}
