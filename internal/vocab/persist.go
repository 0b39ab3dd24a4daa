package vocab

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/truongthanh96/Word2Vec/internal/fileutil"
)

// snapshot is the gob wire form of a Vocabulary
type snapshot struct {
	Words  []string
	Counts []int64
}

// Save writes the vocabulary to path as a gob blob
func Save(path string, v *Vocabulary) error {
	err := fileutil.WriteAtomic(path, 0644, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(snapshot{Words: v.words, Counts: v.counts})
	})
	if err != nil {
		return fmt.Errorf("failed to save vocabulary: %w", err)
	}
	return nil
}

// Load reads a vocabulary written by Save
func Load(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode vocabulary %s: %w", path, err)
	}
	return fromSnapshot(s)
}

func fromSnapshot(s snapshot) (*Vocabulary, error) {
	if len(s.Words) == 0 || s.Words[UnknownID] != UnknownWord {
		return nil, fmt.Errorf("invalid vocabulary: id %d must be %q", UnknownID, UnknownWord)
	}
	if len(s.Counts) != len(s.Words) {
		return nil, fmt.Errorf("invalid vocabulary: %d words but %d counts", len(s.Words), len(s.Counts))
	}

	v := &Vocabulary{
		words:  s.Words,
		counts: s.Counts,
		index:  make(map[string]int, len(s.Words)),
	}
	for id, w := range s.Words {
		if _, dup := v.index[w]; dup {
			return nil, fmt.Errorf("invalid vocabulary: duplicate word %q", w)
		}
		v.index[w] = id
	}
	return v, nil
}
