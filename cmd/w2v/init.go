package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/truongthanh96/Word2Vec/internal/config"
	"github.com/truongthanh96/Word2Vec/internal/corpus"
	"github.com/truongthanh96/Word2Vec/internal/inspect"
	"github.com/truongthanh96/Word2Vec/internal/logging"
	"github.com/truongthanh96/Word2Vec/internal/metrics"
	"github.com/truongthanh96/Word2Vec/internal/store"
	"github.com/truongthanh96/Word2Vec/internal/store/sqlite"
	"github.com/truongthanh96/Word2Vec/internal/vocab"
	"github.com/truongthanh96/Word2Vec/pkg/types"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Files kept in the data directory
const (
	vocabFile      = "vocab.gob"
	corpusFile     = "corpus.gob"
	checkpointFile = "checkpoints.db"
	progressFile   = "progress.json"
)

// trainingState lists the files tied to the current vocabulary
var trainingState = []string{progressFile, checkpointFile, checkpointFile + "-wal", checkpointFile + "-shm"}

// env bundles what every command needs
type env struct {
	cfg     *config.AppConfig
	cfgPath string
	log     *logrus.Logger
	dir     string
}

func (e *env) path(name string) string {
	return filepath.Join(e.dir, name)
}

// initEnv loads the config, applies global flags and prepares the data directory
func initEnv() (*env, error) {
	var (
		cfg  *config.AppConfig
		path string
		err  error
	)
	if configPath != "" {
		path = configPath
		cfg, err = config.Load(configPath)
	} else {
		cfg, path, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}

	// Determine data directory
	dir := dataDir
	if dir == "" {
		dir = cfg.Storage.DataDir
	}
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".w2v")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	log.WithFields(logrus.Fields{
		"config":   path,
		"data_dir": dir,
	}).Debug("environment ready")

	return &env{cfg: cfg, cfgPath: path, log: log, dir: dir}, nil
}

// openStore opens the checkpoint database
func (e *env) openStore() (*sqlite.Store, error) {
	st, err := sqlite.New(sqlite.Config{Path: e.path(checkpointFile)})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return st, nil
}

// discardTrainingState removes the progress file and checkpoint database.
// Returns whether anything was removed.
func (e *env) discardTrainingState() (bool, error) {
	removed := false
	for _, name := range trainingState {
		err := os.Remove(e.path(name))
		switch {
		case err == nil:
			removed = true
		case !errors.Is(err, os.ErrNotExist):
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return removed, nil
}

// loadVocabulary reads the vocabulary written by train or vocab build
func (e *env) loadVocabulary() (*vocab.Vocabulary, error) {
	voc, err := vocab.Load(e.path(vocabFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no vocabulary in %s, run 'w2v vocab build' or 'w2v train' first", e.dir)
	}
	if err != nil {
		return nil, err
	}
	return voc, nil
}

// dataset loads the saved vocabulary and encoded corpus, or builds and saves
// them from the corpus when absent or when rebuild is set
func (e *env) dataset(ctx context.Context, opts corpus.Options, rebuild bool) (*vocab.Vocabulary, []int, error) {
	if !rebuild {
		voc, err := vocab.Load(e.path(vocabFile))
		if err == nil {
			data, err := corpus.LoadEncoded(e.path(corpusFile))
			if err == nil {
				if err := corpus.Validate(data, voc.Size()); err != nil {
					return nil, nil, err
				}
				e.log.WithFields(logrus.Fields{
					"vocab_size": voc.Size(),
					"tokens":     len(data),
				}).Info("loaded dataset snapshot")
				return voc, data, nil
			}
			if !errors.Is(err, os.ErrNotExist) {
				return nil, nil, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, err
		}
	}

	if opts.Path == "" {
		return nil, nil, fmt.Errorf("corpus path is required")
	}

	e.log.WithField("corpus", opts.Path).Info("building vocabulary")
	voc, data, err := corpus.BuildDataset(ctx, opts, e.cfg.Vocab.Capacity)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build dataset: %w", err)
	}

	if err := vocab.Save(e.path(vocabFile), voc); err != nil {
		return nil, nil, err
	}
	if err := corpus.SaveEncoded(e.path(corpusFile), data); err != nil {
		return nil, nil, err
	}

	e.log.WithFields(logrus.Fields{
		"vocab_size": voc.Size(),
		"tokens":     len(data),
		"unknown":    voc.UnknownCount(),
	}).Info("dataset built")
	return voc, data, nil
}

// loadInspector builds a query service from a stored checkpoint. A negative
// iteration selects the latest.
func (e *env) loadInspector(ctx context.Context, st store.Store, iteration int64, m *metrics.Metrics) (*inspect.Service, *types.Checkpoint, error) {
	voc, err := e.loadVocabulary()
	if err != nil {
		return nil, nil, err
	}

	var cp *types.Checkpoint
	if iteration < 0 {
		cp, err = st.Latest(ctx)
	} else {
		cp, err = st.Get(ctx, iteration)
	}
	if errors.Is(err, store.ErrCheckpointNotFound) {
		return nil, nil, fmt.Errorf("no checkpoint found in %s, train a model first", e.dir)
	}
	if err != nil {
		return nil, nil, err
	}
	if err := checkVocabulary(cp, voc); err != nil {
		return nil, nil, err
	}

	emb := mat.NewDense(cp.VocabSize, cp.Dimensions, cp.Embeddings)
	svc, err := inspect.New(voc, emb, inspect.Config{
		CacheSize: e.cfg.Server.CacheSize,
		Metrics:   m,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, cp, nil
}

// checkVocabulary reports whether cp was trained against voc. Checkpoints
// written before fingerprints were recorded are matched on size alone.
func checkVocabulary(cp *types.Checkpoint, voc *vocab.Vocabulary) error {
	if cp.VocabSize != voc.Size() {
		return fmt.Errorf("checkpoint at iteration %d has %d words, vocabulary has %d", cp.Iteration, cp.VocabSize, voc.Size())
	}
	if cp.VocabFingerprint != "" && cp.VocabFingerprint != voc.Fingerprint() {
		return fmt.Errorf("checkpoint at iteration %d was trained on another vocabulary, retrain with 'w2v train --rebuild'", cp.Iteration)
	}
	return nil
}
