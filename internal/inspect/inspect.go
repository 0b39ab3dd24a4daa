// Package inspect answers nearest-neighbor and projection queries against a
// trained embedding table
package inspect

import (
	"fmt"
	"strings"
	"sync"

	"github.com/truongthanh96/Word2Vec/internal/cache"
	"github.com/truongthanh96/Word2Vec/internal/metrics"
	"github.com/truongthanh96/Word2Vec/internal/simd"
	"github.com/truongthanh96/Word2Vec/internal/vocab"
	"github.com/truongthanh96/Word2Vec/pkg/types"

	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultTopK is the neighbor count used when a query does not set one
	DefaultTopK = 8

	// DefaultProjectionLimit is the number of words returned by Projection by default
	DefaultProjectionLimit = 1000
)

// UnknownWordError is returned for queries about words outside the vocabulary
type UnknownWordError struct {
	Word string
}

func (e *UnknownWordError) Error() string {
	return fmt.Sprintf("word %q is not in the vocabulary", e.Word)
}

// Config configures the service
type Config struct {
	CacheSize int              // Cached neighbor listings; 0 uses 1024
	Metrics   *metrics.Metrics // Optional query counters
}

// Service answers queries over a static snapshot of the embeddings. It is
// safe for concurrent use.
type Service struct {
	voc     *vocab.Vocabulary
	emb     *mat.Dense // V×D, unit-length rows
	cache   *cache.NeighborCache
	metrics *metrics.Metrics

	projOnce sync.Once
	proj     []types.ProjectionPoint
	projErr  error
}

// New creates a service from a vocabulary and its V×D embedding table. The
// table is copied and row-normalized, so later changes to final are not seen.
func New(voc *vocab.Vocabulary, final *mat.Dense, cfg Config) (*Service, error) {
	if voc == nil || final == nil {
		return nil, fmt.Errorf("vocabulary and embeddings are required")
	}
	r, c := final.Dims()
	if r != voc.Size() {
		return nil, fmt.Errorf("embedding table has %d rows, vocabulary has %d words", r, voc.Size())
	}

	emb := mat.NewDense(r, c, nil)
	emb.Copy(final)
	for i := 0; i < r; i++ {
		simd.Normalize(emb.RawRowView(i))
	}

	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}

	return &Service{
		voc:     voc,
		emb:     emb,
		cache:   cache.NewNeighborCache(cfg.CacheSize),
		metrics: cfg.Metrics,
	}, nil
}

// SimilarBy returns the topK words closest to word by cosine similarity,
// excluding word itself. Ties are broken by ascending id. A topK of 0 or less
// uses DefaultTopK; the result has exactly min(topK, V-1) entries.
func (s *Service) SimilarBy(word string, topK int) ([]types.Neighbor, error) {
	id, ok := s.voc.ID(word)
	if !ok {
		s.metrics.ObserveQuery("unknown")
		return nil, &UnknownWordError{Word: word}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	if ns, ok := s.cache.Get(word, topK); ok {
		s.metrics.ObserveQuery("hit")
		return ns, nil
	}
	s.metrics.ObserveQuery("miss")

	r, _ := s.emb.Dims()
	scores := make([]float64, r)
	simd.BatchDot(s.emb.RawRowView(id), s.emb.RawMatrix().Data, scores)

	ns := Nearest(s.voc, scores, topK, id)
	s.cache.Put(word, topK, ns)
	return ns, nil
}

// Nearest ranks scores and returns the k best ids other than exclude as neighbors
func Nearest(voc *vocab.Vocabulary, scores []float64, k, exclude int) []types.Neighbor {
	top := simd.TopK(scores, k, exclude)
	ns := make([]types.Neighbor, len(top))
	for i, sc := range top {
		ns[i] = types.Neighbor{
			Word:       voc.Word(sc.ID),
			ID:         sc.ID,
			Rank:       i + 1,
			Similarity: sc.Score,
		}
	}
	return ns
}

// Format renders a listing as "Nearest to word: a, b,"
func Format(word string, neighbors []types.Neighbor) string {
	var b strings.Builder
	b.WriteString("Nearest to ")
	b.WriteString(word)
	b.WriteString(":")
	for _, n := range neighbors {
		b.WriteString(" ")
		b.WriteString(n.Word)
		b.WriteString(",")
	}
	return b.String()
}

// Stats summarizes the embedding table and the query cache
func (s *Service) Stats() types.StatsResponse {
	r, c := s.emb.Dims()
	hits, misses, rate := s.cache.Stats()
	return types.StatsResponse{
		VocabSize:    r,
		Dimensions:   c,
		UnknownCount: s.voc.UnknownCount(),
		Cache: types.CacheStats{
			Entries: s.cache.Len(),
			Hits:    hits,
			Misses:  misses,
			HitRate: rate,
		},
	}
}
