// Package types defines the core data structures shared across the trainer
package types

import "time"

// Progress is the training position persisted alongside every checkpoint
type Progress struct {
	Iteration  int64 `json:"iteration"`   // Batches processed so far
	CurrentNum int   `json:"current_num"` // Outer step (epoch) index
}

// Cursor is the windowing engine position needed to resume batch generation
type Cursor struct {
	Position int   `json:"position"` // Index of the next center token
	Skip     int   `json:"skip"`     // Pairs already emitted for the center at Position
	Epoch    int64 `json:"epoch"`    // Completed passes over the corpus
}

// Checkpoint is a versioned snapshot of the trainer's parameters
type Checkpoint struct {
	ID               string    `json:"id"`
	Iteration        int64     `json:"iteration"`
	VocabSize        int       `json:"vocab_size"`
	VocabFingerprint string    `json:"vocab_fingerprint,omitempty"` // id to word table digest
	Dimensions       int       `json:"dimensions"`
	Embeddings       []float64 `json:"-"` // row-major VocabSize x Dimensions
	NCEWeights       []float64 `json:"-"` // row-major VocabSize x Dimensions
	NCEBiases        []float64 `json:"-"` // VocabSize
	Loss             float64   `json:"loss"`
	CreatedAt        time.Time `json:"created_at"`
}

// CheckpointInfo describes a stored checkpoint without its parameters
type CheckpointInfo struct {
	ID               string    `json:"id"`
	Iteration        int64     `json:"iteration"`
	VocabSize        int       `json:"vocab_size"`
	VocabFingerprint string    `json:"vocab_fingerprint,omitempty"`
	Dimensions       int       `json:"dimensions"`
	Loss             float64   `json:"loss"`
	Latest           bool      `json:"latest"`
	CreatedAt        time.Time `json:"created_at"`
}

// Neighbor is one entry of a nearest-neighbor listing
type Neighbor struct {
	Word       string  `json:"word"`
	ID         int     `json:"id"`
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
}

// ProjectionPoint is a word placed on the 2-D projection of the embedding space
type ProjectionPoint struct {
	Word string  `json:"word"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// SimilarRequest is the request payload for a nearest-neighbor query
type SimilarRequest struct {
	Word string `json:"word"`
	TopK int    `json:"top_k,omitempty"`
}

// SimilarResponse is the response payload for a nearest-neighbor query
type SimilarResponse struct {
	Word      string     `json:"word"`
	Neighbors []Neighbor `json:"neighbors"`
	Text      string     `json:"text"`
	Timing    int64      `json:"timing_ms"`
}

// StoreStats contains statistics about the checkpoint store
type StoreStats struct {
	Checkpoints      int   `json:"checkpoints"`
	LatestIteration  int64 `json:"latest_iteration"`
	HasLatest        bool  `json:"has_latest"`
	StorageBytes     int64 `json:"storage_bytes"`
	OldestIteration  int64 `json:"oldest_iteration"`
	TotalParamsBytes int64 `json:"total_params_bytes"`
}

// CacheStats reports query cache effectiveness
type CacheStats struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"` // Percent
}

// StatsResponse summarizes a trained model
type StatsResponse struct {
	VocabSize    int        `json:"vocab_size"`
	Dimensions   int        `json:"dimensions"`
	UnknownCount int64      `json:"unknown_count"`
	Progress     Progress   `json:"progress"`
	Store        StoreStats `json:"store"`
	Cache        CacheStats `json:"cache"`
}
