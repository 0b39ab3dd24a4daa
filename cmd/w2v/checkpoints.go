package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/truongthanh96/Word2Vec/internal/store"
	"github.com/truongthanh96/Word2Vec/internal/training"
	"github.com/spf13/cobra"
)

var checkpointsCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "Manage stored checkpoints",
}

var (
	checkpointsLimit int
	checkpointsJSON  bool
	pruneKeep        int
)

var checkpointsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpoints, newest first",
	Long: `List stored checkpoints by iteration, newest first.

Examples:
  w2v checkpoints list
  w2v checkpoints list --limit 5 --json`,
	RunE: runCheckpointsList,
}

var checkpointsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old checkpoints",
	Long: `Delete all but the newest --keep checkpoints and reclaim disk space. The
latest checkpoint and the one the progress file resumes from are never
deleted.

Examples:
  w2v checkpoints prune --keep 3`,
	RunE: runCheckpointsPrune,
}

func init() {
	checkpointsListCmd.Flags().IntVarP(&checkpointsLimit, "limit", "n", 20, "Maximum checkpoints")
	checkpointsListCmd.Flags().BoolVar(&checkpointsJSON, "json", false, "Output as JSON")

	checkpointsPruneCmd.Flags().IntVar(&pruneKeep, "keep", 3, "Checkpoints to keep")

	checkpointsCmd.AddCommand(checkpointsListCmd)
	checkpointsCmd.AddCommand(checkpointsPruneCmd)
}

func runCheckpointsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	e, err := initEnv()
	if err != nil {
		return err
	}

	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.List(ctx, store.ListOptions{
		Limit:      checkpointsLimit,
		Descending: true,
	})
	if err != nil {
		return fmt.Errorf("failed to list checkpoints: %w", err)
	}

	if checkpointsJSON {
		return printJSON(infos)
	}

	if len(infos) == 0 {
		fmt.Println("No checkpoints found")
		return nil
	}

	fmt.Printf("  %10s  %-10s %-9s %-36s %s\n", "ITERATION", "LOSS", "SHAPE", "ID", "CREATED")
	for _, info := range infos {
		marker := " "
		if info.Latest {
			marker = "*"
		}
		fmt.Printf("%s %10d  %-10.4f %-9s %-36s %s\n",
			marker,
			info.Iteration,
			info.Loss,
			fmt.Sprintf("%dx%d", info.VocabSize, info.Dimensions),
			info.ID,
			info.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	return nil
}

func runCheckpointsPrune(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if pruneKeep < 1 {
		return fmt.Errorf("--keep must be at least 1")
	}

	e, err := initEnv()
	if err != nil {
		return err
	}

	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	pinned, err := resumeIterations(e.path(progressFile))
	if err != nil {
		return err
	}

	n, err := st.Prune(ctx, pruneKeep, pinned...)
	if err != nil {
		return fmt.Errorf("failed to prune checkpoints: %w", err)
	}
	if err := st.Compact(ctx); err != nil {
		return fmt.Errorf("failed to compact store: %w", err)
	}

	fmt.Printf("Deleted %d checkpoints\n", n)
	return nil
}

// resumeIterations returns the checkpoint iteration the progress file at path
// resumes from, or none when there is no progress file
func resumeIterations(path string) ([]int64, error) {
	pf, err := training.LoadProgress(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refusing to prune with an unreadable progress file: %w", err)
	}
	return []int64{pf.TensorProgress.Iteration}, nil
}
