// Package embedding defines the trainable word embedding model
package embedding

import (
	"context"

	"github.com/truongthanh96/Word2Vec/internal/store"

	"gonum.org/v1/gonum/mat"
)

// Trainer learns a V×D embedding table from (center, context) id pairs
type Trainer interface {
	// TrainStep applies one gradient-descent update and returns the batch loss
	TrainStep(centers, contexts []int) (float64, error)

	// NormalizedEmbeddings returns a fresh copy of the table with unit-length rows
	NormalizedEmbeddings() *mat.Dense

	// Similarity returns the cosine similarity of each query id against every id
	Similarity(ids []int) (*mat.Dense, error)

	// ValidationIDs returns the fixed ids monitored during training
	ValidationIDs() []int

	// Dims returns the vocabulary size and embedding dimensions
	Dims() (vocab, dims int)

	// Save writes a checkpoint for step and returns its id
	Save(ctx context.Context, st store.Store, step int64) (string, error)

	// Restore loads the checkpoint for step, or the latest when step < 0
	Restore(ctx context.Context, st store.Store, step int64) error
}
