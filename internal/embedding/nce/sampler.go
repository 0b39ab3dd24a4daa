package nce

import (
	"math"
	"math/rand/v2"
)

// LogUniformSampler draws classes from an approximately Zipfian distribution
// P(k) = (log(k+2) - log(k+1)) / log(V+1). Low ids, which the vocabulary
// assigns to frequent words, are drawn most often.
type LogUniformSampler struct {
	rangeMax int
	logRange float64
}

// NewLogUniformSampler creates a sampler over [0, rangeMax)
func NewLogUniformSampler(rangeMax int) *LogUniformSampler {
	return &LogUniformSampler{
		rangeMax: rangeMax,
		logRange: math.Log(float64(rangeMax) + 1),
	}
}

// Probability returns P(k)
func (s *LogUniformSampler) Probability(k int) float64 {
	return (math.Log(float64(k)+2) - math.Log(float64(k)+1)) / s.logRange
}

// draw returns one class
func (s *LogUniformSampler) draw(rng *rand.Rand) int {
	k := int(math.Exp(rng.Float64()*s.logRange)) - 1
	if k < 0 {
		k = 0
	}
	if k >= s.rangeMax {
		k = s.rangeMax - 1
	}
	return k
}

// SampleUnique draws n distinct classes and returns them with the number of
// draws it took. n is capped at the range size.
func (s *LogUniformSampler) SampleUnique(rng *rand.Rand, n int) ([]int, int) {
	if n > s.rangeMax {
		n = s.rangeMax
	}
	sampled := make([]int, 0, n)
	seen := make(map[int]struct{}, n)
	tries := 0
	for len(sampled) < n {
		k := s.draw(rng)
		tries++
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		sampled = append(sampled, k)
	}
	return sampled, tries
}

// ExpectedCount returns the expected number of times k appears when drawing
// tries samples with rejection of duplicates.
func (s *LogUniformSampler) ExpectedCount(k, tries int) float64 {
	p := s.Probability(k)
	if p >= 1 {
		return 1
	}
	return -math.Expm1(float64(tries) * math.Log1p(-p))
}
