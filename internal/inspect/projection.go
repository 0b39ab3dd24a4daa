package inspect

import (
	"fmt"

	"github.com/truongthanh96/Word2Vec/pkg/types"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Projection maps the embeddings onto their first two principal components.
// The components are fitted on every row; the first limit rows by id are
// returned. A limit of 0 or less uses DefaultProjectionLimit.
func (s *Service) Projection(limit int) ([]types.ProjectionPoint, error) {
	if limit <= 0 {
		limit = DefaultProjectionLimit
	}

	s.projOnce.Do(func() {
		s.proj, s.projErr = s.project()
	})
	if s.projErr != nil {
		return nil, s.projErr
	}

	n := min(limit, len(s.proj))
	out := make([]types.ProjectionPoint, n)
	copy(out, s.proj[:n])
	return out, nil
}

// project computes the 2-D coordinates of every row
func (s *Service) project() ([]types.ProjectionPoint, error) {
	r, c := s.emb.Dims()
	points := make([]types.ProjectionPoint, r)
	for i := range points {
		points[i].Word = s.voc.Word(i)
	}
	if r < 2 {
		return points, nil
	}

	// Center the data so coordinates match a fitted PCA transform
	centered := mat.NewDense(r, c, nil)
	centered.Copy(s.emb)
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, centered)
		mean := stat.Mean(col, nil)
		for i := 0; i < r; i++ {
			centered.Set(i, j, col[i]-mean)
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(centered, nil); !ok {
		return nil, fmt.Errorf("failed to compute principal components")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	// Fewer than two components leaves Y at zero
	_, k := vecs.Dims()
	k = min(k, 2)

	var reduced mat.Dense
	reduced.Mul(centered, vecs.Slice(0, c, 0, k))
	for i := range points {
		points[i].X = reduced.At(i, 0)
		if k > 1 {
			points[i].Y = reduced.At(i, 1)
		}
	}
	return points, nil
}
