/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ssargent/tablekv/pkg/config"
	"github.com/ssargent/tablekv/pkg/di"
)

// container is built by the root command before any subcommand runs
var container *di.Container

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tablekv",
	Short: "tablekv - named tables over a single pebble keyspace",
	Long: `tablekv multiplexes any number of named tables onto one pebble
database and turns its write-ahead log into a per-table change stream.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init writes the config the other commands load
		if cmd.Name() == "init" {
			return nil
		}
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")

		// a failed command skips PersistentPostRunE
		if container != nil {
			_ = container.Close()
		}

		cfg, err := loadConfig(configPath, dataDir)
		if err != nil {
			return err
		}
		c, err := di.NewContainer(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		container = c
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if container == nil {
			return nil
		}
		err := container.Close()
		container = nil
		return err
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if container != nil {
		_ = container.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ~/.config/tablekv/config.yaml)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory, overrides the config file")
}

// loadConfig reads configPath when it exists and falls back to defaults
// otherwise. A non-empty dataDir wins over the file.
func loadConfig(configPath, dataDir string) (*config.Config, error) {
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", configPath)
		}
		cfg = loaded
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
