// w2v - Skip-gram word2vec trainer with resumable checkpoints
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	configPath string
	dataDir    string
	logLevel   string
	verbose    bool
)

func main() {
	// A missing .env is not an error
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "w2v",
	Short: "Skip-gram word2vec trainer",
	Long: `w2v trains word embeddings from raw text with a skip-gram model and
noise-contrastive estimation, checkpointing progress so an interrupted run
resumes exactly where it stopped.

Trained embeddings can be queried for nearest neighbors from the command line,
an interactive terminal or an HTTP API, and exported as a 2-D projection.

Examples:
  # Train on a text file
  w2v train ./text8

  # Resume after Ctrl+C
  w2v train ./text8

  # Nearest neighbors of a word
  w2v similar king

  # Interactive queries
  w2v query

  # Serve queries over HTTP
  w2v serve`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./w2v.yaml or ~/.config/w2v/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: ~/.w2v)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(vocabCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(checkpointsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(configCmd)
}
