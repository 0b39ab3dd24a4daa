// Package store defines the checkpoint storage interface
package store

import (
	"context"
	"errors"

	"github.com/truongthanh96/Word2Vec/pkg/types"
)

// ErrCheckpointNotFound is returned when no checkpoint matches a lookup
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// Store handles persistence of trainer checkpoints. Checkpoints are keyed by
// iteration and a single latest pointer names the most recently saved one.
type Store interface {
	// Save writes a checkpoint and moves the latest pointer to it atomically.
	// Saving an iteration that already exists replaces it.
	Save(ctx context.Context, cp *types.Checkpoint) error

	// Get retrieves the checkpoint saved at iteration
	Get(ctx context.Context, iteration int64) (*types.Checkpoint, error)

	// Latest retrieves the checkpoint the latest pointer names
	Latest(ctx context.Context) (*types.Checkpoint, error)

	// Has reports whether a checkpoint exists for iteration
	Has(ctx context.Context, iteration int64) (bool, error)

	// List returns checkpoint metadata without parameters
	List(ctx context.Context, opts ListOptions) ([]types.CheckpointInfo, error)

	// Prune deletes all but the keep most recent checkpoints. The checkpoint
	// named by the latest pointer and any pinned iteration are never deleted.
	// Returns the number removed.
	Prune(ctx context.Context, keep int, pinned ...int64) (int, error)

	// Stats returns storage statistics
	Stats(ctx context.Context) (*types.StoreStats, error)

	// Compact optimizes storage (VACUUM)
	Compact(ctx context.Context) error

	// Close releases resources
	Close() error
}

// ListOptions configures listing queries
type ListOptions struct {
	Limit      int
	Offset     int
	Descending bool // newest first
}
