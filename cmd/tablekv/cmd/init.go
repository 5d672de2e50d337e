/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ssargent/tablekv/pkg/config"
	"github.com/ssargent/tablekv/pkg/store"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file and an empty database",
	Long: `Create a configuration file with a generated API key and initialize the
database in the configured data directory.

Initializing persists the key-length convention; later opens with a
different max_key_len are refused.

Examples:
  tablekv init
  tablekv init --data-dir ./data --config ./tablekv.yaml
  tablekv init --max-key-len 16 --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		maxKeyLen, _ := cmd.Flags().GetInt("max-key-len")
		force, _ := cmd.Flags().GetBool("force")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		cfg, err := initialize(configPath, dataDir, maxKeyLen, force)
		if err != nil {
			return err
		}

		cmd.Printf("✅ Configuration written to %s\n", configPath)
		cmd.Printf("Data directory: %s\n", cfg.DataDir)
		cmd.Printf("Max key length: %d\n", cfg.MaxKeyLen)
		cmd.Printf("API key: %s\n", cfg.Server.APIKey)
		cmd.Printf("\nYou can now start the server with:\n")
		cmd.Printf("  tablekv serve --config %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Int("max-key-len", 0, "Key-length convention used to build table anchors (default 4)")
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}

// initialize writes a bootstrap config and opens the database once so its
// layout is persisted
func initialize(configPath, dataDir string, maxKeyLen int, force bool) (*config.Config, error) {
	if config.ConfigExists(configPath) && !force {
		return nil, errors.Newf("config already exists at %s, use --force to overwrite", configPath)
	}

	cfg, err := config.BootstrapConfig(configPath, dataDir)
	if err != nil {
		return nil, err
	}
	if maxKeyLen != 0 {
		cfg.MaxKeyLen = maxKeyLen
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := config.SaveConfig(cfg, configPath); err != nil {
			return nil, err
		}
	}

	db, err := store.Open(cfg.DataDir, cfg.StoreOptions(zerolog.Nop(), nil))
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize store")
	}
	if err := db.Close(); err != nil {
		return nil, err
	}
	return cfg, nil
}
