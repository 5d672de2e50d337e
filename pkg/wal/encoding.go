package wal

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoder writes batches as a stream of msgpack values.
type Encoder struct {
	enc *msgpack.Encoder
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: msgpack.NewEncoder(w)}
}

// Encode writes one batch.
func (e *Encoder) Encode(u Updates) error {
	return e.enc.Encode(&u)
}

// Decoder reads batches written by an Encoder.
type Decoder struct {
	dec *msgpack.Decoder
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: msgpack.NewDecoder(r)}
}

// Decode returns the next batch, or io.EOF when the input is exhausted.
func (d *Decoder) Decode() (Updates, error) {
	var u Updates
	if err := d.dec.Decode(&u); err != nil {
		return Updates{}, err
	}
	return u, nil
}
