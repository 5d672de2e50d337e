package store

import (
	"github.com/rs/zerolog"
	"github.com/ssargent/tablekv/pkg/codec"
	"github.com/ssargent/tablekv/pkg/metrics"
	"github.com/ssargent/tablekv/pkg/storage"
)

// maxTableNameLen keeps names below the name -> id registry anchor.
const maxTableNameLen = 1024

// Options configures a DB
type Options struct {
	// Engine tunes the underlying pebble instance.
	Engine storage.Options
	// MaxKeyLen is the key-length convention anchors are built with. It is
	// persisted on first open and must not change afterwards.
	MaxKeyLen int
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

// DefaultOptions returns options with the default key-length convention
func DefaultOptions() Options {
	return Options{
		Engine:    storage.DefaultOptions(),
		MaxKeyLen: codec.DefaultMaxKeyLen,
		Logger:    zerolog.Nop(),
	}
}
