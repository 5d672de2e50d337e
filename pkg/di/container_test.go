package di

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/tablekv/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.CheckpointPath = filepath.Join(dir, "checkpoints.db")
	cfg.Logging.Level = "debug"
	return cfg
}

func TestContainer(t *testing.T) {
	var out bytes.Buffer
	c, err := NewContainer(testConfig(t), &out)
	require.NoError(t, err)

	db, err := c.DB()
	require.NoError(t, err)

	again, err := c.DB()
	require.NoError(t, err)
	assert.Same(t, db, again)

	_, err = db.OpenTable("users")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "users")

	cp, err := c.Checkpoints("")
	require.NoError(t, err)
	require.NoError(t, cp.Save("indexer", 42))

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "tablekv_registry_operations_total")

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestContainer_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxKeyLen = 0

	_, err := NewContainer(cfg, &bytes.Buffer{})
	assert.Error(t, err)
}
