// Package training drives the embedding trainer over the windowed corpus,
// checkpointing and resuming training progress
package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/truongthanh96/Word2Vec/internal/embedding"
	"github.com/truongthanh96/Word2Vec/internal/embedding/nce"
	"github.com/truongthanh96/Word2Vec/internal/inspect"
	"github.com/truongthanh96/Word2Vec/internal/metrics"
	"github.com/truongthanh96/Word2Vec/internal/store"
	"github.com/truongthanh96/Word2Vec/internal/vocab"
	"github.com/truongthanh96/Word2Vec/internal/window"
	"github.com/truongthanh96/Word2Vec/pkg/types"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// State is the lifecycle stage of an Orchestrator
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateTraining
	StateCheckpointing
	StateCompleted
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateTraining:
		return "training"
	case StateCheckpointing:
		return "checkpointing"
	case StateCompleted:
		return "completed"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// BatchSource produces training batches and exposes a resumable cursor
type BatchSource interface {
	Next() window.Batch
	Cursor() types.Cursor
	Restore(types.Cursor) error
}

// Config configures the training loop
type Config struct {
	NumSteps              int    // Outer steps; each is one pass over the corpus
	SaveEveryIteration    int64  // Checkpoint interval in batches; 0 disables checkpoints
	ProgressPath          string // Progress file written next to every checkpoint
	TopK                  int    // Neighbors logged per validation word
	MaxCheckpointFailures int    // Consecutive failed checkpoints before aborting; 0 never aborts
	KeepCheckpoints       int    // Checkpoints retained after each save; 0 keeps all
	LogEvery              int64  // Average loss is logged every LogEvery batches; 0 disables

	Logger  *logrus.Logger
	Metrics *metrics.Metrics
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		NumSteps:              2,
		SaveEveryIteration:    1000,
		TopK:                  8,
		MaxCheckpointFailures: 3,
		LogEvery:              2000,
	}
}

// Orchestrator runs the training state machine. Train runs on one goroutine;
// State, Progress and FinalEmbeddings may be called from others.
type Orchestrator struct {
	tr  embedding.Trainer
	src BatchSource
	st  store.Store
	voc *vocab.Vocabulary
	fp  string // voc fingerprint
	cfg Config
	log *logrus.Logger

	mu           sync.RWMutex
	state        State
	progress     types.Progress
	final        *mat.Dense
	checkpointID string
	failures     int

	lossSum   float64
	lossCount int64
}

// New creates an orchestrator in the Ready state
func New(tr embedding.Trainer, src BatchSource, st store.Store, voc *vocab.Vocabulary, cfg Config) (*Orchestrator, error) {
	if tr == nil || src == nil || voc == nil {
		return nil, fmt.Errorf("trainer, batch source and vocabulary are required")
	}
	if v, _ := tr.Dims(); v != voc.Size() {
		return nil, fmt.Errorf("trainer vocabulary of %d does not match vocabulary of %d", v, voc.Size())
	}
	if cfg.NumSteps < 0 {
		return nil, fmt.Errorf("num steps must not be negative, got %d", cfg.NumSteps)
	}
	if cfg.SaveEveryIteration < 0 {
		return nil, fmt.Errorf("save interval must not be negative, got %d", cfg.SaveEveryIteration)
	}
	if cfg.SaveEveryIteration > 0 && (st == nil || cfg.ProgressPath == "") {
		return nil, fmt.Errorf("checkpointing requires a store and a progress path")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = inspect.DefaultTopK
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Orchestrator{
		tr:    tr,
		src:   src,
		st:    st,
		voc:   voc,
		fp:    voc.Fingerprint(),
		cfg:   cfg,
		log:   log,
		state: StateReady,
	}, nil
}

// State returns the current lifecycle state
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Progress returns the current training progress
func (o *Orchestrator) Progress() types.Progress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.progress
}

// LastCheckpointID returns the id of the most recent successful checkpoint
func (o *Orchestrator) LastCheckpointID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.checkpointID
}

// FinalEmbeddings returns the normalized embeddings captured when Train
// returned, or nil before that
func (o *Orchestrator) FinalEmbeddings() *mat.Dense {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.final
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// RestoreIfExists resumes from the progress file when one exists. The model
// snapshot, windowing cursor and progress are restored together or not at
// all. Returns whether anything was restored.
func (o *Orchestrator) RestoreIfExists(ctx context.Context) (bool, error) {
	if s := o.State(); s != StateReady {
		return false, fmt.Errorf("%w: cannot restore in state %s", ErrBusy, s)
	}
	path := o.cfg.ProgressPath
	if path == "" {
		return false, nil
	}

	pf, err := LoadProgress(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			o.log.WithField("path", path).Info("No progress file found, starting fresh")
			return false, nil
		}
		return false, &CorruptCheckpointError{Path: path, Reason: "malformed progress file", Err: err}
	}
	if o.st == nil {
		return false, fmt.Errorf("progress file %s found but no checkpoint store is configured", path)
	}
	if pf.VocabFingerprint != "" && pf.VocabFingerprint != o.fp {
		return false, &CorruptCheckpointError{
			Path:   path,
			Reason: fmt.Sprintf("written for vocabulary %.12s, current vocabulary is %.12s", pf.VocabFingerprint, o.fp),
			Err:    nce.ErrVocabularyMismatch,
		}
	}

	previous := o.src.Cursor()
	if err := o.src.Restore(*pf.TrainDataProgress); err != nil {
		return false, &CorruptCheckpointError{Path: path, Reason: "invalid windowing cursor", Err: err}
	}

	iteration := pf.TensorProgress.Iteration
	if err := o.tr.Restore(ctx, o.st, iteration); err != nil {
		o.src.Restore(previous)
		switch {
		case errors.Is(err, store.ErrCheckpointNotFound):
			return false, &CorruptCheckpointError{Path: path, Reason: fmt.Sprintf("no model snapshot for iteration %d", iteration), Err: err}
		case errors.Is(err, nce.ErrShapeMismatch):
			return false, &CorruptCheckpointError{Path: path, Reason: "model snapshot does not match the model", Err: err}
		case errors.Is(err, nce.ErrVocabularyMismatch):
			return false, &CorruptCheckpointError{Path: path, Reason: "model snapshot was trained on another vocabulary", Err: err}
		}
		return false, fmt.Errorf("failed to restore model snapshot: %w", err)
	}

	o.mu.Lock()
	o.progress = *pf.TensorProgress
	o.checkpointID = pf.CheckpointID
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{
		"path":        path,
		"iteration":   iteration,
		"current_num": pf.TensorProgress.CurrentNum,
		"checkpoint":  pf.CheckpointID,
	}).Info("Restored training progress")
	return true, nil
}

// Train runs outer steps from the current progress until NumSteps. Each outer
// step draws batches until the windowing engine completes a corpus pass.
// Cancellation is checked between batches; a cancelled run ends in the
// Stopped state and returns the context error.
func (o *Orchestrator) Train(ctx context.Context) error {
	o.mu.Lock()
	switch o.state {
	case StateReady, StateStopped, StateCompleted:
		o.state = StateTraining
	default:
		s := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w: cannot train in state %s", ErrBusy, s)
	}
	start := o.progress
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{
		"iteration":   start.Iteration,
		"current_num": start.CurrentNum,
		"num_steps":   o.cfg.NumSteps,
	}).Info("Training started")
	began := time.Now()

	err := o.loop(ctx)

	final := o.tr.NormalizedEmbeddings()
	o.mu.Lock()
	o.final = final
	switch {
	case err == nil:
		o.state = StateCompleted
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		o.state = StateStopped
	default:
		o.state = StateFailed
	}
	progress := o.progress
	state := o.state
	o.mu.Unlock()

	entry := o.log.WithFields(logrus.Fields{
		"iteration":   progress.Iteration,
		"current_num": progress.CurrentNum,
		"state":       state.String(),
		"elapsed":     time.Since(began).Round(time.Millisecond).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("Training ended early")
		return err
	}
	entry.Info("Training completed")
	return nil
}

func (o *Orchestrator) loop(ctx context.Context) error {
	for o.Progress().CurrentNum < o.cfg.NumSteps {
		o.cfg.Metrics.SetEpoch(o.Progress().CurrentNum)

		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			b := o.src.Next()
			loss, err := o.tr.TrainStep(b.Centers, b.Contexts)
			if err != nil {
				return fmt.Errorf("train step failed at iteration %d: %w", o.Progress().Iteration+1, err)
			}

			o.mu.Lock()
			o.progress.Iteration++
			if b.EpochDone {
				o.progress.CurrentNum++
			}
			iteration := o.progress.Iteration
			o.mu.Unlock()

			o.cfg.Metrics.ObserveStep(loss)
			o.observeLoss(iteration, loss)

			if o.cfg.SaveEveryIteration > 0 && iteration%o.cfg.SaveEveryIteration == 0 {
				if err := o.checkpoint(ctx); err != nil {
					return err
				}
			}

			if b.EpochDone {
				break
			}
		}
	}
	return nil
}

// observeLoss accumulates the loss and logs the running average
func (o *Orchestrator) observeLoss(iteration int64, loss float64) {
	o.lossSum += loss
	o.lossCount++
	if o.cfg.LogEvery <= 0 || iteration%o.cfg.LogEvery != 0 {
		return
	}
	o.log.WithFields(logrus.Fields{
		"iteration":    iteration,
		"average_loss": o.lossSum / float64(o.lossCount),
	}).Info("Average loss")
	o.lossSum, o.lossCount = 0, 0
}

// checkpoint persists the model snapshot, then the progress file, then logs
// the validation neighbors. A failure is fatal only after
// MaxCheckpointFailures consecutive failures.
func (o *Orchestrator) checkpoint(ctx context.Context) error {
	o.setState(StateCheckpointing)
	defer o.setState(StateTraining)

	// A cancelled run still finishes the checkpoint it started.
	ctx = context.WithoutCancel(ctx)

	started := time.Now()
	id, err := o.writeCheckpoint(ctx)
	o.cfg.Metrics.ObserveCheckpoint(time.Since(started), err)

	progress := o.Progress()
	if err != nil {
		o.failures++
		o.log.WithError(err).WithFields(logrus.Fields{
			"iteration": progress.Iteration,
			"failures":  o.failures,
		}).Error("Checkpoint failed")
		if o.cfg.MaxCheckpointFailures > 0 && o.failures >= o.cfg.MaxCheckpointFailures {
			return fmt.Errorf("%w: %d in a row, last: %v", ErrCheckpointFailures, o.failures, err)
		}
		return nil
	}
	o.failures = 0

	o.mu.Lock()
	o.checkpointID = id
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{
		"iteration":  progress.Iteration,
		"checkpoint": id,
		"elapsed":    time.Since(started).Round(time.Millisecond).String(),
	}).Info("Saved checkpoint")

	o.logNeighbors()

	if o.cfg.KeepCheckpoints > 0 {
		removed, err := o.st.Prune(ctx, o.cfg.KeepCheckpoints, progress.Iteration)
		if err != nil {
			o.log.WithError(err).Warn("Failed to prune checkpoints")
		} else if removed > 0 {
			o.log.WithField("removed", removed).Debug("Pruned checkpoints")
		}
	}
	return nil
}

// writeCheckpoint saves the model snapshot and then the progress file that
// points at it. The progress file is only replaced once the snapshot is stored.
func (o *Orchestrator) writeCheckpoint(ctx context.Context) (string, error) {
	progress := o.Progress()
	cursor := o.src.Cursor()

	id, err := o.tr.Save(ctx, o.st, progress.Iteration)
	if err != nil {
		return "", err
	}

	pf := &ProgressFile{
		Version:           ProgressVersion,
		TrainDataProgress: &cursor,
		TensorProgress:    &progress,
		CheckpointID:      id,
		VocabFingerprint:  o.fp,
		SavedAt:           time.Now().UTC(),
	}
	if err := SaveProgress(o.cfg.ProgressPath, pf); err != nil {
		return "", err
	}
	return id, nil
}

// logNeighbors logs the nearest words to each validation id
func (o *Orchestrator) logNeighbors() {
	ids := o.tr.ValidationIDs()
	if len(ids) == 0 {
		return
	}
	sim, err := o.tr.Similarity(ids)
	if err != nil {
		o.log.WithError(err).Warn("Failed to compute validation similarity")
		return
	}
	for i, id := range ids {
		ns := inspect.Nearest(o.voc, sim.RawRowView(i), o.cfg.TopK, id)
		o.log.Info(inspect.Format(o.voc.Word(id), ns))
	}
}
