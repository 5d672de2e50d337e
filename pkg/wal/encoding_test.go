package wal

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoder_Framing(t *testing.T) {
	batches := []Updates{
		{Seq: 10, Count: 2, Ops: []Update{
			{Kind: KindPut, Key: key(1024, "a"), Value: []byte("1")},
			{Kind: KindDelete, Key: key(1024, "b")},
		}},
		{Seq: 12, Count: 1, Ops: []Update{
			{Kind: KindDeleteRange, From: key(1025, "a"), To: key(1025, "z")},
		}},
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, u := range batches {
		require.NoError(t, enc.Encode(u))
	}

	dec := NewDecoder(&buf)
	for _, want := range batches {
		got, err := dec.Decode()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}
