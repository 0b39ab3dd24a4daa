package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/truongthanh96/Word2Vec/internal/inspect"
	"github.com/truongthanh96/Word2Vec/pkg/types"

	"github.com/spf13/cobra"
)

var (
	similarTopK      int
	similarIteration int64
	similarJSON      bool
)

var similarCmd = &cobra.Command{
	Use:   "similar <word>...",
	Short: "List the nearest neighbors of words",
	Long: `List the words closest to each argument by cosine similarity, using the
latest checkpoint unless --iteration selects another.

Examples:
  w2v similar king
  w2v similar king queen --top-k 5
  w2v similar king --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimilar,
}

func init() {
	similarCmd.Flags().IntVarP(&similarTopK, "top-k", "k", inspect.DefaultTopK, "Neighbors per word")
	similarCmd.Flags().Int64Var(&similarIteration, "iteration", -1, "Checkpoint iteration (default latest)")
	similarCmd.Flags().BoolVar(&similarJSON, "json", false, "Output as JSON")
}

func runSimilar(cmd *cobra.Command, args []string) error {
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

	svc, cp, err := e.loadInspector(ctx, st, similarIteration, nil)
	if err != nil {
		return err
	}

	var out []types.SimilarResponse
	for _, word := range args {
		ns, err := svc.SimilarBy(word, similarTopK)
		if err != nil {
			return err
		}
		out = append(out, types.SimilarResponse{
			Word:      word,
			Neighbors: ns,
			Text:      inspect.Format(word, ns),
		})
	}

	if similarJSON {
		return printJSON(out)
	}

	fmt.Printf("Checkpoint at iteration %d (loss %.4f)\n\n", cp.Iteration, cp.Loss)
	for _, r := range out {
		fmt.Println(r.Text)
		if verbose {
			for _, n := range r.Neighbors {
				fmt.Printf("  %2d. %-20s %.4f\n", n.Rank, n.Word, n.Similarity)
			}
		}
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
