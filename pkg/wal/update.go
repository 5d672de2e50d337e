package wal

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/tablekv/pkg/codec"
)

// Kind is the logical operation of an Update.
type Kind uint8

const (
	KindPut Kind = iota + 1
	KindDelete
	KindDeleteRange
)

func (k Kind) String() string {
	switch k {
	case KindPut:
		return "put"
	case KindDelete:
		return "delete"
	case KindDeleteRange:
		return "delete_range"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText encodes the kind by name in JSON and msgpack output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a name written by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "put":
		*k = KindPut
	case "delete":
		*k = KindDelete
	case "delete_range":
		*k = KindDeleteRange
	default:
		return errors.Newf("unknown update kind %q", text)
	}
	return nil
}

// Update is one decoded operation. Key and Value are set for puts and
// deletes, From and To for range deletes. All keys are fully encoded.
type Update struct {
	Kind  Kind   `json:"kind" msgpack:"kind"`
	Key   []byte `json:"key,omitempty" msgpack:"key,omitempty"`
	Value []byte `json:"value,omitempty" msgpack:"value,omitempty"`
	From  []byte `json:"from,omitempty" msgpack:"from,omitempty"`
	To    []byte `json:"to,omitempty" msgpack:"to,omitempty"`
}

// TableID returns the table the update applies to.
func (u Update) TableID() codec.TableID {
	key := u.Key
	if u.Kind == KindDeleteRange {
		key = u.From
	}
	if len(key) < codec.TableIDLen {
		return 0
	}
	return codec.DecodeTableID(key)
}

// Updates is one committed batch.
type Updates struct {
	// Seq is the sequence number of the first operation in the batch.
	Seq uint64 `json:"seq" msgpack:"seq"`
	// Count is the number of sequence numbers the batch consumed.
	Count uint32   `json:"count" msgpack:"count"`
	Ops   []Update `json:"ops" msgpack:"ops"`
}

// NextSeq is the sequence number of the batch that follows this one.
func (u Updates) NextSeq() uint64 {
	return u.Seq + uint64(u.Count)
}

func (u Updates) countByKind() map[string]int {
	counts := make(map[string]int, 3)
	for _, op := range u.Ops {
		counts[op.Kind.String()]++
	}
	return counts
}
