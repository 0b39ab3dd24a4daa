// Package vocab builds the fixed-size word dictionary used for training
package vocab

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
)

// UnknownWord is the word stored at the out-of-vocabulary id
const UnknownWord = "UNK"

// UnknownID is the id every out-of-vocabulary word maps to
const UnknownID = 0

// ErrCapacity is returned when the requested vocabulary size is below 1
var ErrCapacity = errors.New("vocabulary capacity must be at least 1")

// Vocabulary maps words to dense ids and back. It is immutable once built.
type Vocabulary struct {
	words  []string
	counts []int64
	index  map[string]int
}

// Counter accumulates token frequencies in first-encounter order
type Counter struct {
	counts map[string]int64
	order  []string
	total  int64
}

// NewCounter creates an empty frequency counter
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int64)}
}

// Add records one occurrence of token
func (c *Counter) Add(token string) {
	if _, ok := c.counts[token]; !ok {
		c.order = append(c.order, token)
	}
	c.counts[token]++
	c.total++
}

// Total returns the number of tokens added
func (c *Counter) Total() int64 {
	return c.total
}

// Build keeps the capacity-1 most frequent tokens. Ties are broken by first
// encounter. Counts[0] holds the number of added tokens that did not make the cut.
func (c *Counter) Build(capacity int) (*Vocabulary, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacity, capacity)
	}

	// A literal "UNK" in the corpus folds into the unknown slot and never
	// takes one of the capacity-1 ranked ids.
	ranked := make([]string, 0, len(c.order))
	for _, w := range c.order {
		if w != UnknownWord {
			ranked = append(ranked, w)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return c.counts[ranked[i]] > c.counts[ranked[j]]
	})
	if len(ranked) > capacity-1 {
		ranked = ranked[:capacity-1]
	}

	v := &Vocabulary{
		words:  make([]string, 0, len(ranked)+1),
		counts: make([]int64, 0, len(ranked)+1),
		index:  make(map[string]int, len(ranked)+1),
	}
	v.words = append(v.words, UnknownWord)
	v.counts = append(v.counts, 0)

	var known int64
	for _, w := range ranked {
		v.index[w] = len(v.words)
		v.words = append(v.words, w)
		v.counts = append(v.counts, c.counts[w])
		known += c.counts[w]
	}
	v.index[UnknownWord] = UnknownID
	v.counts[UnknownID] = c.total - known

	return v, nil
}

// Build creates a vocabulary of at most capacity ids from tokens
func Build(tokens []string, capacity int) (*Vocabulary, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrCapacity, capacity)
	}
	c := NewCounter()
	for _, t := range tokens {
		c.Add(t)
	}
	return c.Build(capacity)
}

// BuildDataset builds the vocabulary and encodes tokens against it
func BuildDataset(tokens []string, capacity int) (*Vocabulary, []int, error) {
	v, err := Build(tokens, capacity)
	if err != nil {
		return nil, nil, err
	}
	data, _ := v.Encode(tokens)
	return v, data, nil
}

// Size returns the number of ids including the unknown id
func (v *Vocabulary) Size() int {
	return len(v.words)
}

// ID returns the id of word and whether it is in the vocabulary
func (v *Vocabulary) ID(word string) (int, bool) {
	id, ok := v.index[word]
	return id, ok
}

// Lookup returns the id of word, or UnknownID
func (v *Vocabulary) Lookup(word string) int {
	if id, ok := v.index[word]; ok {
		return id
	}
	return UnknownID
}

// Word returns the word for id, or UnknownWord when id is out of range
func (v *Vocabulary) Word(id int) string {
	if id < 0 || id >= len(v.words) {
		return UnknownWord
	}
	return v.words[id]
}

// Count returns the corpus frequency recorded for id
func (v *Vocabulary) Count(id int) int64 {
	if id < 0 || id >= len(v.counts) {
		return 0
	}
	return v.counts[id]
}

// UnknownCount returns the number of corpus tokens mapped to the unknown id
func (v *Vocabulary) UnknownCount() int64 {
	return v.counts[UnknownID]
}

// Words returns a copy of the id to word table
func (v *Vocabulary) Words() []string {
	out := make([]string, len(v.words))
	copy(out, v.words)
	return out
}

// Encode maps tokens to ids and reports how many were unknown
func (v *Vocabulary) Encode(tokens []string) ([]int, int) {
	ids := make([]int, len(tokens))
	unknown := 0
	for i, t := range tokens {
		id, ok := v.index[t]
		if !ok || id == UnknownID {
			unknown++
			id = UnknownID
		}
		ids[i] = id
	}
	return ids, unknown
}

// Decode maps ids back to words
func (v *Vocabulary) Decode(ids []int) []string {
	words := make([]string, len(ids))
	for i, id := range ids {
		words[i] = v.Word(id)
	}
	return words
}

// Fingerprint returns a hex SHA-256 digest of the id to word table. Two
// vocabularies share a fingerprint exactly when every id names the same word.
func (v *Vocabulary) Fingerprint() string {
	h := sha256.New()
	var n [binary.MaxVarintLen64]byte
	for _, w := range v.words {
		h.Write(n[:binary.PutUvarint(n[:], uint64(len(w)))])
		h.Write([]byte(w))
	}
	return hex.EncodeToString(h.Sum(nil))
}
