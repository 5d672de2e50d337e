package wal

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/ssargent/tablekv/pkg/codec"
)

// batchHeaderLen is the sequence number (8 bytes LE) plus the count (4 bytes LE).
const batchHeaderLen = 12

// Errors
var (
	ErrInvalidBatch    = errors.New("invalid batch record")
	ErrUnsupportedKind = errors.New("unsupported record kind")
)

// DecodeBatch decodes one raw batch as written to the log. Keys and values
// in the result alias repr.
func DecodeBatch(repr []byte) (Updates, error) {
	if len(repr) < batchHeaderLen {
		return Updates{}, errors.Wrapf(ErrInvalidBatch, "batch is %d bytes", len(repr))
	}

	reader, count := pebble.ReadBatch(repr)
	u := Updates{
		Seq:   binary.LittleEndian.Uint64(repr[:8]),
		Count: count,
		Ops:   make([]Update, 0, count),
	}

	for {
		kind, ukey, value, ok, err := reader.Next()
		if err != nil {
			return Updates{}, errors.WithSecondaryError(errors.Wrapf(ErrInvalidBatch, "batch at seq %d", u.Seq), err)
		}
		if !ok {
			break
		}

		switch kind {
		case pebble.InternalKeyKindSet, pebble.InternalKeyKindSetWithDelete:
			u.Ops = append(u.Ops, Update{Kind: KindPut, Key: ukey, Value: value})

		case pebble.InternalKeyKindDelete, pebble.InternalKeyKindSingleDelete, pebble.InternalKeyKindDeleteSized:
			if !codec.IsDeleteRangeHint(ukey) {
				u.Ops = append(u.Ops, Update{Kind: KindDelete, Key: ukey})
				continue
			}
			from, to, err := codec.DecodeDeleteRangeHint(ukey)
			if err != nil {
				return Updates{}, errors.Wrapf(err, "batch at seq %d", u.Seq)
			}
			u.Ops = append(u.Ops, Update{Kind: KindDeleteRange, From: from, To: to})

		case pebble.InternalKeyKindRangeDelete:
			u.Ops = append(u.Ops, Update{Kind: KindDeleteRange, From: ukey, To: value})

		case pebble.InternalKeyKindLogData:
			// no key, no sequence number

		default:
			return Updates{}, errors.Wrapf(ErrUnsupportedKind, "%s in batch at seq %d", kind, u.Seq)
		}
	}
	return u, nil
}
