package corpus

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/truongthanh96/Word2Vec/internal/fileutil"
)

// SaveEncoded writes the encoded corpus to path as a gob blob
func SaveEncoded(path string, data []int) error {
	err := fileutil.WriteAtomic(path, 0644, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(data)
	})
	if err != nil {
		return fmt.Errorf("failed to save encoded corpus: %w", err)
	}
	return nil
}

// LoadEncoded reads an encoded corpus written by SaveEncoded
func LoadEncoded(path string) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var data []int
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode encoded corpus %s: %w", path, err)
	}
	return data, nil
}

// Validate checks that every id in data is below vocabSize
func Validate(data []int, vocabSize int) error {
	for i, id := range data {
		if id < 0 || id >= vocabSize {
			return fmt.Errorf("token %d has id %d outside vocabulary of size %d", i, id, vocabSize)
		}
	}
	return nil
}
