package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/truongthanh96/Word2Vec/internal/embedding/nce"
	"github.com/truongthanh96/Word2Vec/internal/inspect"
	"github.com/truongthanh96/Word2Vec/internal/metrics"
	"github.com/truongthanh96/Word2Vec/internal/training"
	"github.com/truongthanh96/Word2Vec/internal/window"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	trainSteps     int
	trainSaveEvery int64
	trainKeep      int
	trainIsDir     bool
	trainPreload   bool
	trainLowercase bool
	trainRebuild   bool
	trainMetrics   string
)

var trainCmd = &cobra.Command{
	Use:   "train [corpus]",
	Short: "Train embeddings on a corpus",
	Long: `Train word embeddings on a text file or directory.

The vocabulary and encoded corpus are built on the first run and saved in the
data directory. A checkpoint and progress file are written every
--save-every batches. Running train again resumes from the last checkpoint;
Ctrl+C stops at the next batch boundary.

Examples:
  w2v train ./text8
  w2v train ./books --dir --lowercase
  w2v train --steps 5 --save-every 500
  w2v train ./text8 --rebuild   # discard progress and start over`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTrain,
}

func init() {
	trainCmd.Flags().IntVar(&trainSteps, "steps", -1, "Passes over the corpus (default from config)")
	trainCmd.Flags().Int64Var(&trainSaveEvery, "save-every", -1, "Checkpoint interval in batches, 0 disables (default from config)")
	trainCmd.Flags().IntVar(&trainKeep, "keep", -1, "Checkpoints to retain, 0 keeps all (default from config)")
	trainCmd.Flags().BoolVar(&trainIsDir, "dir", false, "Corpus is a directory")
	trainCmd.Flags().BoolVar(&trainPreload, "preload", false, "Read whole files into memory")
	trainCmd.Flags().BoolVar(&trainLowercase, "lowercase", false, "Fold tokens to lower case")
	trainCmd.Flags().BoolVar(&trainRebuild, "rebuild", false, "Rebuild the vocabulary and discard saved progress")
	trainCmd.Flags().StringVar(&trainMetrics, "metrics-addr", "", "Serve Prometheus metrics on this address while training")
}

func runTrain(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := initEnv()
	if err != nil {
		return err
	}
	cfg := e.cfg

	if len(args) == 1 {
		cfg.Corpus.Path = args[0]
	}
	if cmd.Flags().Changed("dir") {
		cfg.Corpus.IsDir = trainIsDir
	}
	if cmd.Flags().Changed("preload") {
		cfg.Corpus.Preload = trainPreload
	}
	if cmd.Flags().Changed("lowercase") {
		cfg.Corpus.Lowercase = trainLowercase
	}
	if trainSteps >= 0 {
		cfg.Training.NumSteps = trainSteps
	}
	if trainSaveEvery >= 0 {
		cfg.Training.SaveEveryIteration = trainSaveEvery
	}
	if trainKeep >= 0 {
		cfg.Training.KeepCheckpoints = trainKeep
	}

	if trainRebuild {
		// Checkpoints of the old vocabulary cannot be resumed
		if _, err := e.discardTrainingState(); err != nil {
			return err
		}
	}

	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	voc, data, err := e.dataset(ctx, cfg.CorpusOptions(), trainRebuild)
	if err != nil {
		return err
	}

	engine, err := window.New(data, cfg.WindowConfig())
	if err != nil {
		return fmt.Errorf("invalid windowing config: %w", err)
	}

	mc := cfg.TrainerConfig(voc.Size())
	mc.VocabFingerprint = voc.Fingerprint()
	model, err := nce.New(mc)
	if err != nil {
		return fmt.Errorf("invalid model config: %w", err)
	}

	tc := cfg.TrainingConfig()
	tc.ProgressPath = e.path(progressFile)
	tc.Logger = e.log
	tc.Metrics = metrics.New()

	if trainMetrics != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", tc.Metrics.Handler())
		srv := &http.Server{Addr: trainMetrics, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.log.WithError(err).Warn("metrics server stopped")
			}
		}()
		defer srv.Close()
		e.log.WithField("addr", trainMetrics).Info("serving metrics")
	}

	orch, err := training.New(model, engine, st, voc, tc)
	if err != nil {
		return err
	}

	if _, err := orch.RestoreIfExists(ctx); err != nil {
		var corrupt *training.CorruptCheckpointError
		if errors.As(err, &corrupt) {
			return fmt.Errorf("%w (run with --rebuild to start over)", err)
		}
		return err
	}

	e.log.WithFields(logrus.Fields{
		"vocab_size":       voc.Size(),
		"tokens":           len(data),
		"batches_per_pass": engine.BatchesPerEpoch(),
	}).Info("Starting training")

	err = orch.Train(ctx)
	if errors.Is(err, context.Canceled) {
		p := orch.Progress()
		fmt.Printf("\nStopped at iteration %d (pass %d/%d). Run train again to resume.\n",
			p.Iteration, p.CurrentNum, cfg.Training.NumSteps)
		return nil
	}
	if err != nil {
		return err
	}

	p := orch.Progress()
	fmt.Printf("Training complete: %d iterations, %d passes, last loss %.4f\n", p.Iteration, p.CurrentNum, model.LastLoss())
	checkpointID := orch.LastCheckpointID()

	// Save the final state so queries see the trained embeddings
	if cfg.Training.SaveEveryIteration > 0 && p.Iteration > 0 {
		if has, err := st.Has(ctx, p.Iteration); err == nil && !has {
			id, err := model.Save(ctx, st, p.Iteration)
			if err != nil {
				return fmt.Errorf("failed to save final checkpoint: %w", err)
			}
			err = training.SaveProgress(tc.ProgressPath, &training.ProgressFile{
				TrainDataProgress: ptr(engine.Cursor()),
				TensorProgress:    &p,
				CheckpointID:      id,
				VocabFingerprint:  voc.Fingerprint(),
			})
			if err != nil {
				return err
			}
			checkpointID = id
		}
	}
	if checkpointID != "" {
		fmt.Printf("Last checkpoint: %s (model step %d)\n", checkpointID, model.Steps())
	}

	svc, err := inspect.New(voc, orch.FinalEmbeddings(), inspect.Config{})
	if err != nil {
		return err
	}
	fmt.Println()
	for _, id := range model.ValidationIDs() {
		word := voc.Word(id)
		ns, err := svc.SimilarBy(word, cfg.Training.TopK)
		if err != nil {
			return err
		}
		fmt.Println(inspect.Format(word, ns))
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
