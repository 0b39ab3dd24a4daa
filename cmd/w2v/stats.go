package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/truongthanh96/Word2Vec/internal/training"
	"github.com/truongthanh96/Word2Vec/pkg/types"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vocabulary, training and storage statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	e, err := initEnv()
	if err != nil {
		return err
	}

	var out types.StatsResponse

	voc, err := e.loadVocabulary()
	if err != nil {
		return err
	}
	out.VocabSize = voc.Size()
	out.UnknownCount = voc.UnknownCount()

	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ss, err := st.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get store stats: %w", err)
	}
	out.Store = *ss

	if latest, err := st.Latest(ctx); err == nil {
		out.Dimensions = latest.Dimensions
	}

	pf, err := training.LoadProgress(e.path(progressFile))
	switch {
	case err == nil:
		out.Progress = *pf.TensorProgress
	case !errors.Is(err, os.ErrNotExist):
		return err
	}

	if statsJSON {
		return printJSON(out)
	}

	fmt.Println("Word2Vec Statistics")
	fmt.Println("===================")
	fmt.Printf("Data directory:    %s\n", e.dir)
	fmt.Printf("Vocabulary:        %d words (%d unknown tokens)\n", out.VocabSize, out.UnknownCount)
	if out.Dimensions > 0 {
		fmt.Printf("Dimensions:        %d\n", out.Dimensions)
	}
	fmt.Printf("Iterations:        %d\n", out.Progress.Iteration)
	fmt.Printf("Passes completed:  %d/%d\n", out.Progress.CurrentNum, e.cfg.Training.NumSteps)
	fmt.Printf("Checkpoints:       %d", out.Store.Checkpoints)
	if out.Store.HasLatest {
		fmt.Printf(" (latest at iteration %d)", out.Store.LatestIteration)
	}
	fmt.Println()
	fmt.Printf("Storage:           %s\n", formatBytes(out.Store.StorageBytes))
	return nil
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
