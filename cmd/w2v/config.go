package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/truongthanh96/Word2Vec/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the effective configuration to a file",
	Long: `Write the configuration currently in effect, defaults merged with any
config file, environment variables and global flags, as YAML.

Without a path the file is written where w2v looks for it: --config when
given, otherwise ./w2v.yaml when present or ~/.config/w2v/config.yaml.

Examples:
  w2v config init
  w2v config init ./w2v.yaml --force
  W2V_CORPUS=./text8 w2v config init ./w2v.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	e, err := initEnv()
	if err != nil {
		return err
	}

	path := e.cfgPath
	if len(args) == 1 {
		path = args[0]
	}
	if dataDir != "" {
		e.cfg.Storage.DataDir = dataDir
	}

	if err := writeConfig(path, e.cfg, configForce); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// writeConfig saves cfg to path unless a file already exists there and
// force is not set
func writeConfig(path string, cfg *config.AppConfig, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := config.Save(path, cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
