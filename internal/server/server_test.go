package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/truongthanh96/Word2Vec/internal/inspect"
	"github.com/truongthanh96/Word2Vec/internal/logging"
	"github.com/truongthanh96/Word2Vec/internal/metrics"
	"github.com/truongthanh96/Word2Vec/internal/store/sqlite"
	"github.com/truongthanh96/Word2Vec/internal/training"
	"github.com/truongthanh96/Word2Vec/internal/vocab"
	"github.com/truongthanh96/Word2Vec/pkg/types"

	"gonum.org/v1/gonum/mat"
)

// newTestServer builds ids UNK=0, a=1, b=2, c=3, d=4 over a 2-D table
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	tokens := []string{"a", "a", "a", "a", "b", "b", "b", "c", "c", "d"}
	voc, err := vocab.Build(tokens, 5)
	if err != nil {
		t.Fatal(err)
	}

	emb := mat.NewDense(5, 2, []float64{
		1, 0,
		3, 0,
		1, 1,
		2, 2,
		-1, 0,
	})
	m := metrics.New()
	svc, err := inspect.New(voc, emb, inspect.Config{Metrics: m})
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	st, err := sqlite.New(sqlite.Config{Path: filepath.Join(dir, "checkpoints.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	progressPath := filepath.Join(dir, "progress.json")
	return New(svc, st, Config{
		ProgressPath: progressPath,
		Logger:       logging.Discard(),
		Metrics:      m,
	}), progressPath
}

func do(t *testing.T, h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSimilarGet(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/similar?word=a&top_k=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp types.SimilarResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Neighbors) != 3 {
		t.Fatalf("expected 3 neighbors, got %d", len(resp.Neighbors))
	}
	if resp.Text != "Nearest to a: UNK, b, c," {
		t.Errorf("unexpected text %q", resp.Text)
	}
	for _, n := range resp.Neighbors {
		if n.Word == "a" {
			t.Error("query word should be excluded")
		}
	}
}

func TestSimilarPost(t *testing.T) {
	s, _ := newTestServer(t)

	body, _ := json.Marshal(types.SimilarRequest{Word: "b"})
	rec := do(t, s.Handler(), http.MethodPost, "/similar", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp types.SimilarResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	// top_k defaults to 8, capped at V-1
	if len(resp.Neighbors) != 4 {
		t.Errorf("expected 4 neighbors, got %d", len(resp.Neighbors))
	}
	if resp.Neighbors[0].Word != "c" {
		t.Errorf("expected c first, got %s", resp.Neighbors[0].Word)
	}
}

func TestSimilarErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"unknown word", http.MethodGet, "/similar?word=zebra", "", http.StatusNotFound},
		{"missing word", http.MethodGet, "/similar", "", http.StatusBadRequest},
		{"bad top_k", http.MethodGet, "/similar?word=a&top_k=x", "", http.StatusBadRequest},
		{"negative top_k", http.MethodGet, "/similar?word=a&top_k=-2", "", http.StatusBadRequest},
		{"bad body", http.MethodPost, "/similar", "{", http.StatusBadRequest},
		{"wrong method", http.MethodDelete, "/similar", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), tt.method, tt.target, []byte(tt.body))
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestProjection(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/projection?limit=3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string][]types.ProjectionPoint
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	points := resp["points"]
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].Word != "UNK" || points[1].Word != "a" {
		t.Errorf("points should be ordered by id, got %s, %s", points[0].Word, points[1].Word)
	}

	rec = do(t, s.Handler(), http.MethodGet, "/projection?limit=-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative limit, got %d", rec.Code)
	}
}

func TestStats(t *testing.T) {
	s, progressPath := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodGet, "/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats types.StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.VocabSize != 5 || stats.Dimensions != 2 {
		t.Errorf("unexpected shape %dx%d", stats.VocabSize, stats.Dimensions)
	}
	if stats.Progress.Iteration != 0 || stats.Store.Checkpoints != 0 {
		t.Errorf("expected empty progress and store, got %+v", stats)
	}

	cp := &types.Checkpoint{
		ID:         "cp-1",
		Iteration:  40,
		VocabSize:  5,
		Dimensions: 2,
		Embeddings: make([]float64, 10),
		NCEWeights: make([]float64, 10),
		NCEBiases:  make([]float64, 5),
	}
	if err := s.st.Save(context.Background(), cp); err != nil {
		t.Fatal(err)
	}
	err := training.SaveProgress(progressPath, &training.ProgressFile{
		TrainDataProgress: &types.Cursor{Position: 3},
		TensorProgress:    &types.Progress{Iteration: 40, CurrentNum: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	rec = do(t, s.Handler(), http.MethodGet, "/stats", nil)
	stats = types.StatsResponse{}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Progress.Iteration != 40 || stats.Progress.CurrentNum != 1 {
		t.Errorf("unexpected progress %+v", stats.Progress)
	}
	if stats.Store.Checkpoints != 1 || stats.Store.LatestIteration != 40 {
		t.Errorf("unexpected store stats %+v", stats.Store)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}

	do(t, h, http.MethodGet, "/similar?word=a", nil)
	do(t, h, http.MethodGet, "/similar?word=a", nil)

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `w2v_queries_total{outcome="hit"} 1`) {
		t.Errorf("expected one cache hit in metrics output")
	}
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s.Handler(), http.MethodOptions, "/similar", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
