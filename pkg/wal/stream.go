package wal

import (
	"context"
	"io"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/tablekv/pkg/metrics"
	"github.com/ssargent/tablekv/pkg/storage"
)

// DefaultPollInterval is how often Follow looks for new log records.
const DefaultPollInterval = 500 * time.Millisecond

// StreamConfig configures a Stream.
type StreamConfig struct {
	// Dir is the engine's WAL directory.
	Dir string
	// Since is the first sequence number of interest. Batches that end
	// before it are skipped.
	Since        uint64
	PollInterval time.Duration
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
}

// Stream is a forward-only cursor over the committed batches of a log.
type Stream struct {
	id      ksuid.KSUID
	config  StreamConfig
	archive string
	log     zerolog.Logger

	logs    []LogFile
	idx     int
	current pebble.FileNum
	reader  *LogReader

	started bool
	lastSeq uint64
	updates Updates
	err     error
}

// Open lists the log files under config.Dir and positions the stream
// before the first batch that reaches config.Since.
func Open(config StreamConfig) (*Stream, error) {
	if config.Dir == "" {
		return nil, errors.New("wal directory is required")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}

	logs, err := ListLogs(config.Dir)
	if err != nil {
		return nil, err
	}

	id := ksuid.New()
	s := &Stream{
		id:      id,
		config:  config,
		archive: filepath.Join(config.Dir, storage.ArchiveDirName),
		log:     config.Logger.With().Str("stream", id.String()).Logger(),
		logs:    logs,
	}
	s.log.Debug().Str("dir", config.Dir).Uint64("since", config.Since).Int("logs", len(logs)).Msg("change stream opened")
	return s, nil
}

// ID identifies the stream in logs.
func (s *Stream) ID() string {
	return s.id.String()
}

// Next advances to the next batch. It returns false at the end of the log
// or on error; check Err to tell them apart.
func (s *Stream) Next() bool {
	for s.err == nil {
		if s.reader == nil && !s.openNext() {
			return false
		}

		repr, err := s.reader.ReadNext()
		if err == io.EOF {
			s.closeReader()
			continue
		}
		if err != nil {
			s.err = err
			return false
		}

		u, err := DecodeBatch(repr)
		if err != nil {
			s.config.Metrics.RecordWALDecodeError()
			s.log.Error().Err(err).Uint64("file", uint64(s.current)).Msg("failed to decode batch")
			s.err = err
			return false
		}
		if len(u.Ops) == 0 || u.NextSeq() <= s.config.Since {
			continue
		}
		if s.started && u.Seq <= s.lastSeq {
			continue
		}

		s.started = true
		s.lastSeq = u.Seq
		s.updates = u
		s.config.Metrics.RecordWALBatch(u.Seq, u.countByKind())
		return true
	}
	return false
}

func (s *Stream) openNext() bool {
	if s.idx >= len(s.logs) {
		return false
	}
	file := s.logs[s.idx]
	s.idx++

	reader, err := NewLogReader(LogReaderConfig{File: file, ArchiveDir: s.archive})
	if err != nil {
		s.err = err
		return false
	}
	s.reader = reader
	s.current = file.Num
	return true
}

func (s *Stream) closeReader() {
	if s.reader == nil {
		return
	}
	if err := s.reader.Close(); err != nil {
		s.log.Warn().Err(err).Msg("failed to close log file")
	}
	s.reader = nil
}

// Updates returns the batch the stream is positioned on.
func (s *Stream) Updates() Updates {
	return s.updates
}

// Err returns the error that stopped the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Follow delivers every batch to fn and keeps polling for new ones until
// ctx is cancelled or fn returns an error.
func (s *Stream) Follow(ctx context.Context, fn func(Updates) error) error {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		for s.Next() {
			if err := fn(s.updates); err != nil {
				return err
			}
		}
		if s.err != nil {
			return s.err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if err := s.rescan(); err != nil {
			return err
		}
	}
}

// rescan relists the log files starting from the one read last, which may
// have grown. Batches already delivered are dropped by sequence number.
func (s *Stream) rescan() error {
	logs, err := ListLogs(s.config.Dir)
	if err != nil {
		return err
	}
	s.logs = s.logs[:0]
	for _, l := range logs {
		if l.Num >= s.current {
			s.logs = append(s.logs, l)
		}
	}
	s.idx = 0
	return nil
}

// Close releases the open log file.
func (s *Stream) Close() error {
	var err error
	if s.reader != nil {
		err = s.reader.Close()
		s.reader = nil
	}
	s.log.Debug().Uint64("last_seq", s.lastSeq).Msg("change stream closed")
	return err
}
