package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/truongthanh96/Word2Vec/internal/fileutil"
	"github.com/truongthanh96/Word2Vec/internal/inspect"
	"github.com/truongthanh96/Word2Vec/pkg/types"

	"github.com/spf13/cobra"
)

var (
	projectLimit     int
	projectOutput    string
	projectIteration int64
	projectJSON      bool
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Export a 2-D projection of the embeddings",
	Long: `Project the embeddings onto their first two principal components and write
one "word<TAB>x<TAB>y" line per word, in id order, for plotting.

Examples:
  w2v project > points.tsv
  w2v project --limit 500 --output points.tsv
  w2v project --json`,
	RunE: runProject,
}

func init() {
	projectCmd.Flags().IntVarP(&projectLimit, "limit", "n", inspect.DefaultProjectionLimit, "Words to export")
	projectCmd.Flags().StringVarP(&projectOutput, "output", "o", "", "Output file (default stdout)")
	projectCmd.Flags().Int64Var(&projectIteration, "iteration", -1, "Checkpoint iteration (default latest)")
	projectCmd.Flags().BoolVar(&projectJSON, "json", false, "Output as JSON")
}

func runProject(cmd *cobra.Command, args []string) error {
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

	svc, _, err := e.loadInspector(ctx, st, projectIteration, nil)
	if err != nil {
		return err
	}

	points, err := svc.Projection(projectLimit)
	if err != nil {
		return fmt.Errorf("failed to project embeddings: %w", err)
	}

	if projectOutput == "" {
		if projectJSON {
			return printJSON(points)
		}
		w := bufio.NewWriter(os.Stdout)
		if err := writePoints(w, points); err != nil {
			return err
		}
		return w.Flush()
	}

	err = fileutil.WriteAtomic(projectOutput, 0644, func(w io.Writer) error {
		if projectJSON {
			return json.NewEncoder(w).Encode(points)
		}
		return writePoints(w, points)
	})
	if err != nil {
		return fmt.Errorf("failed to write projection: %w", err)
	}
	e.log.WithField("path", projectOutput).Infof("wrote %d points", len(points))
	return nil
}

// writePoints writes one tab-separated line per point
func writePoints(w io.Writer, points []types.ProjectionPoint) error {
	for _, p := range points {
		if _, err := fmt.Fprintf(w, "%s\t%g\t%g\n", p.Word, p.X, p.Y); err != nil {
			return err
		}
	}
	return nil
}
