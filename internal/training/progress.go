package training

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/truongthanh96/Word2Vec/internal/fileutil"
	"github.com/truongthanh96/Word2Vec/pkg/types"
)

// ProgressVersion is the progress file format written by SaveProgress
const ProgressVersion = 1

// ProgressFile is the on-disk record tying a windowing cursor to the
// training progress of the checkpoint it was written with
type ProgressFile struct {
	Version           int             `json:"version"`
	TrainDataProgress *types.Cursor   `json:"train_data_progress"`
	TensorProgress    *types.Progress `json:"tensor_progress"`
	CheckpointID      string          `json:"checkpoint_id,omitempty"`
	VocabFingerprint  string          `json:"vocab_fingerprint,omitempty"`
	SavedAt           time.Time       `json:"saved_at"`
}

// SaveProgress writes pf to path atomically. A failed write leaves any
// previous file in place.
func SaveProgress(path string, pf *ProgressFile) error {
	if pf.Version == 0 {
		pf.Version = ProgressVersion
	}
	err := fileutil.WriteAtomic(path, 0644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(pf)
	})
	if err != nil {
		return fmt.Errorf("failed to write progress file: %w", err)
	}
	return nil
}

// LoadProgress reads and validates a progress file. A missing file is
// reported with an error satisfying errors.Is(err, os.ErrNotExist).
func LoadProgress(path string) (*ProgressFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pf ProgressFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse progress file: %w", err)
	}

	// Files without a version predate versioning and share the v1 layout.
	if pf.Version == 0 {
		pf.Version = 1
	}
	if pf.Version > ProgressVersion {
		return nil, fmt.Errorf("unsupported progress file version %d", pf.Version)
	}
	if pf.TrainDataProgress == nil {
		return nil, fmt.Errorf("progress file has no train_data_progress")
	}
	if pf.TensorProgress == nil {
		return nil, fmt.Errorf("progress file has no tensor_progress")
	}
	if pf.TensorProgress.Iteration < 0 || pf.TensorProgress.CurrentNum < 0 {
		return nil, fmt.Errorf("progress file has negative progress %+v", *pf.TensorProgress)
	}

	return &pf, nil
}
