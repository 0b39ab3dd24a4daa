package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/truongthanh96/Word2Vec/internal/tui"
)

var (
	queryTopK      int
	queryIteration int64
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Explore neighbors interactively",
	Long: `Open an interactive terminal for nearest-neighbor queries.

Type a word, optionally followed by a neighbor count, and press Enter.
Up and Down move through the results, Tab queries the selected neighbor
and Esc or Ctrl+C quits.

Examples:
  w2v query
  w2v query --top-k 15`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "Neighbors per query (default from config)")
	queryCmd.Flags().Int64Var(&queryIteration, "iteration", -1, "Checkpoint iteration (default latest)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	e, err := initEnv()
	if err != nil {
		return err
	}

	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	svc, cp, err := e.loadInspector(context.Background(), st, queryIteration, nil)
	if err != nil {
		return err
	}

	topK := queryTopK
	if topK <= 0 {
		topK = e.cfg.Training.TopK
	}

	stats := svc.Stats()
	summary := fmt.Sprintf("%d words x %d dimensions, checkpoint at iteration %d",
		stats.VocabSize, stats.Dimensions, cp.Iteration)

	m := tui.New(svc, summary, topK)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %w", err)
	}
	return nil
}
