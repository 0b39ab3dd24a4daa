// Package window generates skip-gram training batches from an encoded corpus
package window

import (
	"fmt"
	"math/rand/v2"

	"github.com/truongthanh96/Word2Vec/pkg/types"
)

// Config configures batch generation
type Config struct {
	BatchSize  int    // Pairs per batch
	NumSkips   int    // Pairs drawn per center word; must divide BatchSize
	SkipWindow int    // Words considered on each side of the center
	Seed       uint64 // Seed for context selection
}

// DefaultConfig returns the reference configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:  128,
		NumSkips:   2,
		SkipWindow: 2,
		Seed:       1,
	}
}

// Validate checks the configuration against a corpus of n tokens
func (c Config) Validate(n int) error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.SkipWindow <= 0:
		return fmt.Errorf("skip window must be positive, got %d", c.SkipWindow)
	case c.NumSkips <= 0 || c.NumSkips > 2*c.SkipWindow:
		return fmt.Errorf("num skips must be in [1, %d], got %d", 2*c.SkipWindow, c.NumSkips)
	case c.BatchSize%c.NumSkips != 0:
		return fmt.Errorf("num skips %d must divide batch size %d", c.NumSkips, c.BatchSize)
	case n < 2*c.SkipWindow+1:
		return fmt.Errorf("corpus of %d tokens is shorter than one window (%d)", n, 2*c.SkipWindow+1)
	}
	return nil
}

// Batch is one mini-batch of (center, context) id pairs
type Batch struct {
	Centers  []int
	Contexts []int

	// EpochDone is set when the cursor wrapped past the corpus end while
	// producing this batch.
	EpochDone bool
}

// Engine walks the corpus cyclically and owns the cursor. It is not safe for
// concurrent use; one producer at a time.
type Engine struct {
	data   []int
	cfg    Config
	cursor types.Cursor

	// offsets chosen for the center the cursor points at
	picked      []int
	pickedPos   int
	pickedEpoch int64
}

// New creates an engine over data
func New(data []int, cfg Config) (*Engine, error) {
	if err := cfg.Validate(len(data)); err != nil {
		return nil, err
	}
	return &Engine{
		data:      data,
		cfg:       cfg,
		pickedPos: -1,
	}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Len returns the corpus length in tokens
func (e *Engine) Len() int {
	return len(e.data)
}

// BatchesPerEpoch returns how many batches cover one pass over the corpus
func (e *Engine) BatchesPerEpoch() int {
	pairs := len(e.data) * e.cfg.NumSkips
	return (pairs + e.cfg.BatchSize - 1) / e.cfg.BatchSize
}

// Next produces the next batch and advances the cursor. The stream never ends.
func (e *Engine) Next() Batch {
	b := Batch{
		Centers:  make([]int, e.cfg.BatchSize),
		Contexts: make([]int, e.cfg.BatchSize),
	}

	n := len(e.data)
	for i := 0; i < e.cfg.BatchSize; i++ {
		pos := e.cursor.Position
		offsets := e.offsets(pos, e.cursor.Epoch)

		ci := ((pos+offsets[e.cursor.Skip])%n + n) % n
		b.Centers[i] = e.data[pos]
		b.Contexts[i] = e.data[ci]

		e.cursor.Skip++
		if e.cursor.Skip == e.cfg.NumSkips {
			e.cursor.Skip = 0
			e.cursor.Position++
			if e.cursor.Position == n {
				e.cursor.Position = 0
				e.cursor.Epoch++
				b.EpochDone = true
			}
		}
	}
	return b
}

// offsets returns the NumSkips context offsets for the center at pos, drawn
// without replacement from [-SkipWindow, SkipWindow] \ {0}. The draw depends
// only on (seed, epoch, pos) so a restored cursor reproduces it.
func (e *Engine) offsets(pos int, epoch int64) []int {
	if pos == e.pickedPos && epoch == e.pickedEpoch {
		return e.picked
	}

	w := e.cfg.SkipWindow
	candidates := make([]int, 0, 2*w)
	for off := -w; off <= w; off++ {
		if off != 0 {
			candidates = append(candidates, off)
		}
	}

	rng := rand.New(rand.NewPCG(e.cfg.Seed, uint64(epoch)<<40^uint64(pos)))
	for i := 0; i < e.cfg.NumSkips; i++ {
		j := i + rng.IntN(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}

	e.picked = candidates[:e.cfg.NumSkips]
	e.pickedPos = pos
	e.pickedEpoch = epoch
	return e.picked
}

// Cursor returns the current position
func (e *Engine) Cursor() types.Cursor {
	return e.cursor
}

// Restore moves the engine to a previously saved cursor
func (e *Engine) Restore(c types.Cursor) error {
	if c.Position < 0 || c.Position >= len(e.data) {
		return fmt.Errorf("cursor position %d outside corpus of %d tokens", c.Position, len(e.data))
	}
	if c.Skip < 0 || c.Skip >= e.cfg.NumSkips {
		return fmt.Errorf("cursor skip %d outside [0, %d)", c.Skip, e.cfg.NumSkips)
	}
	if c.Epoch < 0 {
		return fmt.Errorf("cursor epoch %d is negative", c.Epoch)
	}
	e.cursor = c
	e.pickedPos = -1
	return nil
}
