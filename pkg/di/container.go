// Package di provides dependency injection container
package di

import (
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/ssargent/tablekv/pkg/checkpoint"
	"github.com/ssargent/tablekv/pkg/config"
	"github.com/ssargent/tablekv/pkg/logging"
	"github.com/ssargent/tablekv/pkg/metrics"
	"github.com/ssargent/tablekv/pkg/store"
)

// Container holds all the dependencies for the application. The database
// and checkpoint store are opened on first use.
type Container struct {
	config   *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	mu          sync.Mutex
	db          *store.DB
	checkpoints *checkpoint.Store
}

// NewContainer creates a new dependency injection container. Logs go to
// out.
func NewContainer(cfg *config.Config, out io.Writer) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	logger, err := logging.New(cfg.Logging, out)
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Container{
		config:   cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.New(registry),
	}, nil
}

// Config returns the loaded configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the shared logger
func (c *Container) Logger() zerolog.Logger {
	return c.logger
}

// Registry returns the prometheus registry backing /metrics
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// Metrics returns the collectors registered on Registry
func (c *Container) Metrics() *metrics.Metrics {
	return c.metrics
}

// DB opens the database at the configured data dir
func (c *Container) DB() (*store.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}
	db, err := store.Open(c.config.DataDir, c.config.StoreOptions(c.logger, c.metrics))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open store at %s", c.config.DataDir)
	}
	c.db = db
	return db, nil
}

// Checkpoints opens the consumer checkpoint store at path, or at the
// configured checkpoint path when path is empty
func (c *Container) Checkpoints(path string) (*checkpoint.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.checkpoints != nil {
		return c.checkpoints, nil
	}
	if path == "" {
		path = c.config.CheckpointPath
	}
	cp, err := checkpoint.Open(path)
	if err != nil {
		return nil, err
	}
	c.checkpoints = cp
	return cp, nil
}

// Close releases whatever the container opened
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.checkpoints != nil {
		err = errors.CombineErrors(err, c.checkpoints.Close())
		c.checkpoints = nil
	}
	if c.db != nil {
		err = errors.CombineErrors(err, c.db.Close())
		c.db = nil
	}
	return err
}
