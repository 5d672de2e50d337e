package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/tablekv/pkg/checkpoint"
	"github.com/ssargent/tablekv/pkg/config"
	"github.com/ssargent/tablekv/pkg/store"
	"github.com/ssargent/tablekv/pkg/wal"
)

// executeCommand runs the root command against a fresh config path and
// returns what it printed to stdout
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&logs)
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	return out.String(), err
}

func TestInitialize(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	dataDir := filepath.Join(tmpDir, "data")

	t.Run("Successful initialization", func(t *testing.T) {
		cfg, err := initialize(configPath, dataDir, 8, false)
		require.NoError(t, err)
		assert.Equal(t, dataDir, cfg.DataDir)
		assert.Equal(t, 8, cfg.MaxKeyLen)
		assert.Len(t, cfg.Server.APIKey, 64)
		assert.FileExists(t, configPath)
		assert.DirExists(t, dataDir)

		loaded, err := config.LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, 8, loaded.MaxKeyLen)
	})

	t.Run("Existing config needs force", func(t *testing.T) {
		_, err := initialize(configPath, dataDir, 8, false)
		assert.Error(t, err)

		_, err = initialize(configPath, dataDir, 8, true)
		assert.NoError(t, err)
	})

	t.Run("Persisted key length is enforced", func(t *testing.T) {
		_, err := initialize(configPath, dataDir, 16, true)
		assert.ErrorIs(t, err, store.ErrKeyLenMismatch)
	})

	t.Run("Invalid key length", func(t *testing.T) {
		_, err := initialize(filepath.Join(tmpDir, "other.yaml"), filepath.Join(tmpDir, "other"), -1, false)
		assert.Error(t, err)
	})
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := loadConfig(filepath.Join(tmpDir, "missing.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().DataDir, cfg.DataDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	saved := config.DefaultConfig()
	saved.DataDir = "/var/lib/tablekv"
	saved.Server.Port = 9000
	require.NoError(t, config.SaveConfig(saved, configPath))

	cfg, err = loadConfig(configPath, "")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/tablekv", cfg.DataDir)
	assert.Equal(t, 9000, cfg.Server.Port)

	cfg, err = loadConfig(configPath, "./override")
	require.NoError(t, err)
	assert.Equal(t, "./override", cfg.DataDir)
}

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	opts := store.DefaultOptions()
	opts.Logger = zerolog.Nop()
	db, err := store.Open(t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestScanTable(t *testing.T) {
	db := openTestDB(t)
	tbl, err := db.OpenTable("users")
	require.NoError(t, err)
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, tbl.Put([]byte(k), []byte("v"+k)))
	}

	tests := []struct {
		name     string
		opts     scanOptions
		expected string
	}{
		{"all", scanOptions{}, "a\tva\nb\tvb\nc\tvc\nd\tvd\n"},
		{"bounded", scanOptions{start: []byte("b"), end: []byte("d")}, "b\tvb\nc\tvc\n"},
		{"limit", scanOptions{limit: 1}, "a\tva\n"},
		{"reverse", scanOptions{reverse: true, end: []byte("c")}, "b\tvb\na\tva\n"},
		{"hex", scanOptions{start: []byte("d"), hex: true}, "64\tvd\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, scanTable(tbl, tt.opts, &out))
			assert.Equal(t, tt.expected, out.String())
		})
	}
}

func TestStreamChanges(t *testing.T) {
	db := openTestDB(t)
	tbl, err := db.OpenTable("users")
	require.NoError(t, err)
	require.NoError(t, tbl.Put([]byte("a"), []byte("1")))
	require.NoError(t, tbl.Delete([]byte("a")))

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, streamChanges(context.Background(), db, nil, changesOptions{}, &out))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.NotEmpty(t, lines)
		var last wal.Updates
		require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
		require.Len(t, last.Ops, 1)
		assert.Equal(t, wal.KindDelete, last.Ops[0].Kind)
		assert.Equal(t, tbl.ID(), last.Ops[0].TableID())
	})

	t.Run("msgpack", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, streamChanges(context.Background(), db, nil, changesOptions{format: "msgpack"}, &out))

		dec := wal.NewDecoder(&out)
		first, err := dec.Decode()
		require.NoError(t, err)
		assert.NotZero(t, first.Seq)
	})

	t.Run("unknown format", func(t *testing.T) {
		err := streamChanges(context.Background(), db, nil, changesOptions{format: "xml"}, &bytes.Buffer{})
		assert.Error(t, err)
	})

	t.Run("consumer resumes", func(t *testing.T) {
		cp, err := checkpoint.Open(filepath.Join(t.TempDir(), "checkpoints.db"))
		require.NoError(t, err)
		defer cp.Close()

		opts := changesOptions{consumer: "indexer"}
		var out bytes.Buffer
		require.NoError(t, streamChanges(context.Background(), db, cp, opts, &out))
		assert.NotEmpty(t, out.String())

		saved, ok, err := cp.Load("indexer")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NotZero(t, saved)

		out.Reset()
		require.NoError(t, streamChanges(context.Background(), db, cp, opts, &out))
		assert.Empty(t, out.String())

		require.NoError(t, tbl.Put([]byte("b"), []byte("2")))
		out.Reset()
		require.NoError(t, streamChanges(context.Background(), db, cp, opts, &out))
		assert.Equal(t, 1, strings.Count(out.String(), "\n"))
	})
}

func TestCommands(t *testing.T) {
	tmpDir := t.TempDir()
	base := []string{"--config", filepath.Join(tmpDir, "none.yaml"), "--data-dir", filepath.Join(tmpDir, "data")}
	run := func(args ...string) (string, error) {
		return executeCommand(t, append(args, base...)...)
	}

	out, err := run("tables", "create", "users")
	require.NoError(t, err)
	assert.Contains(t, out, "id 1024")

	_, err = run("put", "-t", "users", "alice", "hello")
	require.NoError(t, err)

	out, err = run("get", "-t", "users", "alice")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	out, err = run("scan", "-t", "users")
	require.NoError(t, err)
	assert.Equal(t, "alice\thello\n", out)

	_, err = run("tables", "rename", "users", "people")
	require.NoError(t, err)

	out, err = run("tables", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "1024")
	assert.Contains(t, out, "people")

	_, err = run("delete", "-t", "people", "alice")
	require.NoError(t, err)

	_, err = run("get", "-t", "people", "alice")
	assert.ErrorIs(t, err, store.ErrKeyNotFound)

	_, err = run("tables", "drop", "people")
	require.NoError(t, err)

	out, err = run("tables", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "people")
}
