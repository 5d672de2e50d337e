package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ssargent/tablekv/pkg/codec"
	"github.com/ssargent/tablekv/pkg/metrics"
	"github.com/ssargent/tablekv/pkg/store"
	"github.com/ssargent/tablekv/pkg/wal"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Bind   string
	Port   int
	APIKey string
}

// TableStore is the part of *store.DB the API serves
type TableStore interface {
	OpenTable(name string) (*store.Table, error)
	RenameTable(oldName, newName string) error
	DestroyTable(name string) error
	ListTables() ([]store.TableInfo, error)
	TableID(name string) (codec.TableID, bool, error)
	Changes(since uint64) (*wal.Stream, error)
}

// RenameRequest is the body of POST /tables/{name}/rename
type RenameRequest struct {
	NewName string `json:"new_name"`
}

// Entry is one record of a scan
type Entry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// ScanResponse is a page of records in key order
type ScanResponse struct {
	Entries []Entry `json:"entries"`
	// Next is the key to resume from, empty when the range is exhausted.
	Next string `json:"next,omitempty"`
}

// ChangesResponse is a page of the change stream
type ChangesResponse struct {
	Updates []wal.Updates `json:"updates"`
	NextSeq uint64        `json:"next_seq"`
}

// Dependencies are the shared services StartServer wires into the router
type Dependencies struct {
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}
