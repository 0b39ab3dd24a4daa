// Package nce implements a skip-gram embedding model trained with
// noise-contrastive estimation over log-uniformly sampled negative classes.
package nce

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/truongthanh96/Word2Vec/internal/embedding"
	"github.com/truongthanh96/Word2Vec/internal/simd"
	"github.com/truongthanh96/Word2Vec/internal/store"
	"github.com/truongthanh96/Word2Vec/pkg/types"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrNonFiniteLoss is returned when a step produces NaN or Inf. Parameters are left untouched.
	ErrNonFiniteLoss = errors.New("non-finite loss")

	// ErrShapeMismatch is returned when a checkpoint does not match the model dimensions
	ErrShapeMismatch = errors.New("checkpoint shape does not match model")

	// ErrVocabularyMismatch is returned when a checkpoint was trained against a
	// different id to word table than the model is bound to
	ErrVocabularyMismatch = errors.New("checkpoint vocabulary does not match model")
)

// PRNG streams derived from the seed
const (
	streamInit uint64 = iota + 1
	streamValid
	streamSample = 1 << 32
)

// Config configures the model
type Config struct {
	VocabSize    int
	Dimensions   int
	NumSampled   int     // Negative classes per batch
	LearningRate float64 // Plain gradient descent step size
	ValidSize    int     // Validation ids monitored during training
	ValidWindow  int     // Validation ids are drawn from the first ValidWindow ids
	Seed         uint64

	// VocabFingerprint identifies the vocabulary rows are indexed by. It is
	// stored in every checkpoint and checked on Load when both are set.
	VocabFingerprint string
}

// DefaultConfig returns the reference hyperparameters for a vocabulary of vocabSize
func DefaultConfig(vocabSize int) Config {
	return Config{
		VocabSize:    vocabSize,
		Dimensions:   300,
		NumSampled:   64,
		LearningRate: 1.0,
		ValidSize:    16,
		ValidWindow:  100,
		Seed:         1,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch {
	case c.VocabSize < 1:
		return fmt.Errorf("vocab size must be positive, got %d", c.VocabSize)
	case c.Dimensions < 1:
		return fmt.Errorf("dimensions must be positive, got %d", c.Dimensions)
	case c.NumSampled < 1:
		return fmt.Errorf("num sampled must be positive, got %d", c.NumSampled)
	case c.LearningRate <= 0 || math.IsInf(c.LearningRate, 0) || math.IsNaN(c.LearningRate):
		return fmt.Errorf("learning rate must be a positive number, got %v", c.LearningRate)
	case c.ValidSize < 0 || c.ValidWindow < 0:
		return fmt.Errorf("validation size and window must not be negative")
	}
	return nil
}

// Model holds the embedding table and the NCE output layer. All methods are
// safe for concurrent use; readers never observe a half-applied update.
type Model struct {
	mu  sync.RWMutex
	cfg Config

	embeddings []float64 // V×D row-major
	weights    []float64 // V×D row-major
	biases     []float64 // V

	valid    []int
	steps    int64
	lastLoss float64

	sampler *LogUniformSampler
	pool    *simd.VectorPool
}

// New creates a randomly initialized model
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v, d := cfg.VocabSize, cfg.Dimensions
	m := &Model{
		cfg:        cfg,
		embeddings: make([]float64, v*d),
		weights:    make([]float64, v*d),
		biases:     make([]float64, v),
		sampler:    NewLogUniformSampler(v),
		pool:       simd.NewVectorPool(d),
	}

	src := rand.NewPCG(cfg.Seed, streamInit)
	uniform := distuv.Uniform{Min: -1, Max: 1, Src: src}
	for i := range m.embeddings {
		m.embeddings[i] = uniform.Rand()
	}

	sigma := 1 / math.Sqrt(float64(d))
	normal := distuv.Normal{Mu: 0, Sigma: sigma, Src: src}
	for i := range m.weights {
		x := normal.Rand()
		for math.Abs(x) > 2*sigma {
			x = normal.Rand()
		}
		m.weights[i] = x
	}

	m.valid = validationIDs(cfg)
	return m, nil
}

// validationIDs draws ValidSize distinct ids from the head of the vocabulary
func validationIDs(cfg Config) []int {
	window := min(cfg.ValidWindow, cfg.VocabSize)
	size := min(cfg.ValidSize, window)
	if size == 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, streamValid))
	return rng.Perm(window)[:size]
}

// Dims returns the vocabulary size and embedding dimensions
func (m *Model) Dims() (int, int) {
	return m.cfg.VocabSize, m.cfg.Dimensions
}

// ValidationIDs returns a copy of the monitored ids
func (m *Model) ValidationIDs() []int {
	out := make([]int, len(m.valid))
	copy(out, m.valid)
	return out
}

// Steps returns the number of applied train steps
func (m *Model) Steps() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.steps
}

// LastLoss returns the loss of the most recent successful step
func (m *Model) LastLoss() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastLoss
}

// TrainStep runs one NCE update over a batch of (center, context) pairs
func (m *Model) TrainStep(centers, contexts []int) (float64, error) {
	if len(centers) == 0 || len(centers) != len(contexts) {
		return 0, fmt.Errorf("invalid batch: %d centers, %d contexts", len(centers), len(contexts))
	}
	for i := range centers {
		if !m.inRange(centers[i]) || !m.inRange(contexts[i]) {
			return 0, fmt.Errorf("batch pair %d (%d, %d) outside vocabulary of %d", i, centers[i], contexts[i], m.cfg.VocabSize)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Negatives depend only on (seed, step) so a restored model replays them.
	rng := rand.New(rand.NewPCG(m.cfg.Seed, streamSample+uint64(m.steps)))
	sampled, tries := m.sampler.SampleUnique(rng, m.cfg.NumSampled)

	logQ := make([]float64, len(sampled))
	for j, k := range sampled {
		logQ[j] = math.Log(m.sampler.ExpectedCount(k, tries))
	}

	d := m.cfg.Dimensions
	scale := 1 / float64(len(centers))

	embGrad := make(map[int][]float64)
	wGrad := make(map[int][]float64)
	bGrad := make(map[int]float64)
	defer func() {
		for _, g := range embGrad {
			m.pool.Put(g)
		}
		for _, g := range wGrad {
			m.pool.Put(g)
		}
	}()

	grad := func(grads map[int][]float64, id int) []float64 {
		g, ok := grads[id]
		if !ok {
			g = m.pool.Get()
			grads[id] = g
		}
		return g
	}

	// accumulate adds the contribution of one logit with label z
	accumulate := func(center, class int, e []float64, logit float64, z float64) float64 {
		w := m.weights[class*d : (class+1)*d]
		g := (sigmoid(logit) - z) * scale
		simd.AddScaled(grad(embGrad, center), g, w)
		simd.AddScaled(grad(wGrad, class), g, e)
		bGrad[class] += g
		return crossEntropy(logit, z)
	}

	var loss float64
	for i, center := range centers {
		e := m.embeddings[center*d : (center+1)*d]

		target := contexts[i]
		trueLogit := simd.DotProduct(e, m.weights[target*d:(target+1)*d]) + m.biases[target] -
			math.Log(m.sampler.ExpectedCount(target, tries))
		loss += accumulate(center, target, e, trueLogit, 1)

		for j, k := range sampled {
			logit := simd.DotProduct(e, m.weights[k*d:(k+1)*d]) + m.biases[k] - logQ[j]
			loss += accumulate(center, k, e, logit, 0)
		}
	}
	loss *= scale

	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return loss, fmt.Errorf("%w at step %d", ErrNonFiniteLoss, m.steps)
	}
	if !gradientsFinite(bGrad, embGrad, wGrad) {
		return loss, fmt.Errorf("%w: gradient overflow at step %d", ErrNonFiniteLoss, m.steps)
	}

	lr := m.cfg.LearningRate
	for id, g := range embGrad {
		simd.AddScaled(m.embeddings[id*d:(id+1)*d], -lr, g)
	}
	for id, g := range wGrad {
		simd.AddScaled(m.weights[id*d:(id+1)*d], -lr, g)
	}
	for id, g := range bGrad {
		m.biases[id] -= lr * g
	}

	m.steps++
	m.lastLoss = loss
	return loss, nil
}

// gradientsFinite reports whether every accumulated gradient is finite
func gradientsFinite(biases map[int]float64, rows ...map[int][]float64) bool {
	for _, grads := range rows {
		for _, g := range grads {
			if !simd.AllFinite(g) {
				return false
			}
		}
	}
	for _, g := range biases {
		if math.IsNaN(g) || math.IsInf(g, 0) {
			return false
		}
	}
	return true
}

func (m *Model) inRange(id int) bool {
	return id >= 0 && id < m.cfg.VocabSize
}

// sigmoid is the logistic function evaluated without overflow
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	ex := math.Exp(x)
	return ex / (1 + ex)
}

// crossEntropy is the sigmoid cross-entropy of logit x against label z
func crossEntropy(x, z float64) float64 {
	return math.Max(x, 0) - x*z + math.Log1p(math.Exp(-math.Abs(x)))
}

// NormalizedEmbeddings returns a V×D copy of the table with each non-zero row
// scaled to unit length
func (m *Model) NormalizedEmbeddings() *mat.Dense {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.normalized()
}

func (m *Model) normalized() *mat.Dense {
	v, d := m.cfg.VocabSize, m.cfg.Dimensions
	data := make([]float64, len(m.embeddings))
	copy(data, m.embeddings)
	for i := 0; i < v; i++ {
		simd.Normalize(data[i*d : (i+1)*d])
	}
	return mat.NewDense(v, d, data)
}

// Similarity returns the |ids|×V cosine similarity matrix
func (m *Model) Similarity(ids []int) (*mat.Dense, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no query ids")
	}
	for _, id := range ids {
		if !m.inRange(id) {
			return nil, fmt.Errorf("query id %d outside vocabulary of %d", id, m.cfg.VocabSize)
		}
	}

	m.mu.RLock()
	norm := m.normalized()
	m.mu.RUnlock()

	d := m.cfg.Dimensions
	q := mat.NewDense(len(ids), d, nil)
	for i, id := range ids {
		q.SetRow(i, norm.RawRowView(id))
	}

	var sim mat.Dense
	sim.Mul(q, norm.T())
	return &sim, nil
}

// Snapshot copies the parameters into a checkpoint for step
func (m *Model) Snapshot(step int64) *types.Checkpoint {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return &types.Checkpoint{
		ID:               uuid.NewString(),
		Iteration:        step,
		VocabSize:        m.cfg.VocabSize,
		VocabFingerprint: m.cfg.VocabFingerprint,
		Dimensions:       m.cfg.Dimensions,
		Embeddings:       append([]float64(nil), m.embeddings...),
		NCEWeights:       append([]float64(nil), m.weights...),
		NCEBiases:        append([]float64(nil), m.biases...),
		Loss:             m.lastLoss,
	}
}

// Save writes a checkpoint for step to st and returns its id
func (m *Model) Save(ctx context.Context, st store.Store, step int64) (string, error) {
	cp := m.Snapshot(step)
	if err := st.Save(ctx, cp); err != nil {
		return "", fmt.Errorf("failed to save checkpoint %d: %w", step, err)
	}
	return cp.ID, nil
}

// Restore loads the checkpoint for step, or the latest one when step < 0.
// Returns store.ErrCheckpointNotFound when absent.
func (m *Model) Restore(ctx context.Context, st store.Store, step int64) error {
	var cp *types.Checkpoint
	var err error
	if step < 0 {
		cp, err = st.Latest(ctx)
	} else {
		cp, err = st.Get(ctx, step)
	}
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return m.Load(cp)
}

// Load replaces the parameters with those of cp
func (m *Model) Load(cp *types.Checkpoint) error {
	v, d := m.cfg.VocabSize, m.cfg.Dimensions
	if cp.VocabSize != v || cp.Dimensions != d ||
		len(cp.Embeddings) != v*d || len(cp.NCEWeights) != v*d || len(cp.NCEBiases) != v {
		return fmt.Errorf("%w: checkpoint is %dx%d, model is %dx%d", ErrShapeMismatch, cp.VocabSize, cp.Dimensions, v, d)
	}
	if fp := m.cfg.VocabFingerprint; fp != "" && cp.VocabFingerprint != "" && cp.VocabFingerprint != fp {
		return fmt.Errorf("%w: checkpoint %d has vocabulary %.12s, model has %.12s", ErrVocabularyMismatch, cp.Iteration, cp.VocabFingerprint, fp)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.embeddings, cp.Embeddings)
	copy(m.weights, cp.NCEWeights)
	copy(m.biases, cp.NCEBiases)
	m.steps = cp.Iteration
	m.lastLoss = cp.Loss
	return nil
}

var _ embedding.Trainer = (*Model)(nil)
