// Package simd provides loop-unrolled vector kernels for the embedding tables
package simd

import (
	"math"
	"sync"
)

// VectorPool pools float64 slices to avoid allocations in hot paths
type VectorPool struct {
	pool sync.Pool
	dims int
}

// NewVectorPool creates a pool for vectors of the specified dimensions
func NewVectorPool(dims int) *VectorPool {
	return &VectorPool{
		dims: dims,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]float64, dims)
			},
		},
	}
}

// Get retrieves a zeroed vector from the pool
func (p *VectorPool) Get() []float64 {
	return p.pool.Get().([]float64)
}

// Put returns a vector to the pool
func (p *VectorPool) Put(v []float64) {
	if len(v) != p.dims {
		return // Don't pool wrong-sized vectors
	}
	for i := range v {
		v[i] = 0
	}
	p.pool.Put(v)
}

// DotProduct computes the dot product of two vectors.
// Processes 8 elements at a time so the compiler can auto-vectorize.
func DotProduct(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var sum float64
	n := len(a)
	limit := n - (n % 8)

	for i := 0; i < limit; i += 8 {
		sum += a[i]*b[i] + a[i+1]*b[i+1] + a[i+2]*b[i+2] + a[i+3]*b[i+3] +
			a[i+4]*b[i+4] + a[i+5]*b[i+5] + a[i+6]*b[i+6] + a[i+7]*b[i+7]
	}

	for i := limit; i < n; i++ {
		sum += a[i] * b[i]
	}

	return sum
}

// L2Norm computes the L2 (Euclidean) norm of a vector
func L2Norm(v []float64) float64 {
	return math.Sqrt(DotProduct(v, v))
}

// Normalize normalizes a vector in-place to unit length. Zero vectors are left as is.
func Normalize(v []float64) {
	norm := L2Norm(v)
	if norm == 0 {
		return
	}
	inv := 1.0 / norm
	for i := range v {
		v[i] *= inv
	}
}

// AddScaled computes dst += alpha * src
func AddScaled(dst []float64, alpha float64, src []float64) {
	if len(dst) != len(src) {
		return
	}

	n := len(dst)
	limit := n - (n % 8)

	for i := 0; i < limit; i += 8 {
		dst[i] += alpha * src[i]
		dst[i+1] += alpha * src[i+1]
		dst[i+2] += alpha * src[i+2]
		dst[i+3] += alpha * src[i+3]
		dst[i+4] += alpha * src[i+4]
		dst[i+5] += alpha * src[i+5]
		dst[i+6] += alpha * src[i+6]
		dst[i+7] += alpha * src[i+7]
	}

	for i := limit; i < n; i++ {
		dst[i] += alpha * src[i]
	}
}

// BatchDot computes the dot product of query with every row of a row-major
// matrix with len(query) columns. Results are written to out (must be pre-allocated).
func BatchDot(query, rows []float64, out []float64) {
	d := len(query)
	if d == 0 {
		return
	}
	for i := range out {
		out[i] = DotProduct(query, rows[i*d:(i+1)*d])
	}
}

// AllFinite reports whether no element is NaN or infinite
func AllFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
