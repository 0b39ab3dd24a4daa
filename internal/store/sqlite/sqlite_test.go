package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/truongthanh96/Word2Vec/internal/store"
	"github.com/truongthanh96/Word2Vec/pkg/types"
)

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "checkpoints.db")

	s, err := New(Config{Path: dbPath})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	cp := testCheckpoint("cp-1", 100, 4, 3)

	if err := s.Save(ctx, cp); err != nil {
		t.Fatalf("failed to save checkpoint: %v", err)
	}

	got, err := s.Get(ctx, 100)
	if err != nil {
		t.Fatalf("failed to get checkpoint: %v", err)
	}

	if got.ID != cp.ID {
		t.Errorf("ID mismatch: got %s, want %s", got.ID, cp.ID)
	}
	if got.VocabSize != 4 || got.Dimensions != 3 {
		t.Errorf("shape mismatch: got %dx%d", got.VocabSize, got.Dimensions)
	}
	if got.Loss != cp.Loss {
		t.Errorf("loss mismatch: got %f, want %f", got.Loss, cp.Loss)
	}
	for i := range cp.Embeddings {
		if got.Embeddings[i] != cp.Embeddings[i] || got.NCEWeights[i] != cp.NCEWeights[i] {
			t.Fatalf("parameter mismatch at %d", i)
		}
	}
	for i := range cp.NCEBiases {
		if got.NCEBiases[i] != cp.NCEBiases[i] {
			t.Fatalf("bias mismatch at %d", i)
		}
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	_, err := s.Get(context.Background(), 42)
	if !errors.Is(err, store.ErrCheckpointNotFound) {
		t.Errorf("expected ErrCheckpointNotFound, got %v", err)
	}

	_, err = s.Latest(context.Background())
	if !errors.Is(err, store.ErrCheckpointNotFound) {
		t.Errorf("expected ErrCheckpointNotFound from empty store, got %v", err)
	}
}

func TestStore_Latest(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	for _, it := range []int64{10, 30, 20} {
		if err := s.Save(ctx, testCheckpoint("cp-"+string(rune('a'+it/10)), it, 2, 2)); err != nil {
			t.Fatal(err)
		}
	}

	// latest follows the save order, not the largest iteration
	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("failed to get latest: %v", err)
	}
	if got.Iteration != 20 {
		t.Errorf("expected latest iteration 20, got %d", got.Iteration)
	}
}

func TestStore_Save_ReplacesIteration(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	s.Save(ctx, testCheckpoint("first", 5, 2, 2))
	second := testCheckpoint("second", 5, 2, 2)
	second.Loss = 0.25
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("failed to replace checkpoint: %v", err)
	}

	got, _ := s.Get(ctx, 5)
	if got.ID != "second" || got.Loss != 0.25 {
		t.Errorf("expected replaced checkpoint, got %s loss %f", got.ID, got.Loss)
	}
}

func TestStore_Save_Invalid(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	tests := []struct {
		name string
		cp   *types.Checkpoint
	}{
		{"nil", nil},
		{"missing id", testCheckpoint("", 1, 2, 2)},
		{"zero shape", &types.Checkpoint{ID: "x", Iteration: 1}},
		{"short embeddings", func() *types.Checkpoint {
			cp := testCheckpoint("x", 1, 2, 2)
			cp.Embeddings = cp.Embeddings[:3]
			return cp
		}()},
		{"short biases", func() *types.Checkpoint {
			cp := testCheckpoint("x", 1, 2, 2)
			cp.NCEBiases = cp.NCEBiases[:1]
			return cp
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Save(context.Background(), tt.cp); err == nil {
				t.Error("expected error")
			}
		})
	}

	if ok, _ := s.Has(context.Background(), 1); ok {
		t.Error("invalid checkpoint must not be stored")
	}
}

func TestStore_Has(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	s.Save(ctx, testCheckpoint("a", 7, 2, 2))

	if ok, err := s.Has(ctx, 7); err != nil || !ok {
		t.Errorf("expected checkpoint 7 to exist, got %v %v", ok, err)
	}
	if ok, _ := s.Has(ctx, 8); ok {
		t.Error("expected checkpoint 8 to be absent")
	}
}

func TestStore_List(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	for i, it := range []int64{1, 2, 3, 4, 5} {
		s.Save(ctx, testCheckpoint(string(rune('a'+i)), it, 2, 2))
	}

	all, err := s.List(ctx, store.ListOptions{})
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 checkpoints, got %d", len(all))
	}
	if all[0].Iteration != 1 || all[4].Iteration != 5 {
		t.Errorf("expected ascending order, got %d..%d", all[0].Iteration, all[4].Iteration)
	}
	for _, info := range all {
		if info.Latest != (info.Iteration == 5) {
			t.Errorf("iteration %d: expected latest=%v", info.Iteration, info.Iteration == 5)
		}
	}

	page, _ := s.List(ctx, store.ListOptions{Limit: 2, Offset: 1, Descending: true})
	if len(page) != 2 || page[0].Iteration != 4 || page[1].Iteration != 3 {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestStore_Prune(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	for i, it := range []int64{10, 20, 30, 40} {
		s.Save(ctx, testCheckpoint(string(rune('a'+i)), it, 2, 2))
	}

	removed, err := s.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}

	for it, want := range map[int64]bool{10: false, 20: false, 30: true, 40: true} {
		if ok, _ := s.Has(ctx, it); ok != want {
			t.Errorf("iteration %d: expected present=%v", it, want)
		}
	}

	if _, err := s.Prune(ctx, 0); err == nil {
		t.Error("expected error for keep=0")
	}
}

func TestStore_Prune_KeepsLatestPointer(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	s.Save(ctx, testCheckpoint("a", 30, 2, 2))
	s.Save(ctx, testCheckpoint("b", 40, 2, 2))
	s.Save(ctx, testCheckpoint("c", 10, 2, 2)) // latest, but oldest iteration

	if _, err := s.Prune(ctx, 1); err != nil {
		t.Fatal(err)
	}

	latest, err := s.Latest(ctx)
	if err != nil || latest.Iteration != 10 {
		t.Fatalf("latest checkpoint must survive pruning, got %v %v", latest, err)
	}
	if ok, _ := s.Has(ctx, 40); !ok {
		t.Error("most recent iteration must survive pruning")
	}
	if ok, _ := s.Has(ctx, 30); ok {
		t.Error("iteration 30 should have been pruned")
	}
}

func TestStore_Prune_KeepsPinned(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	for i, it := range []int64{10, 20, 30, 40} {
		s.Save(ctx, testCheckpoint(string(rune('a'+i)), it, 2, 2))
	}

	// 20 is what a progress file still points at
	removed, err := s.Prune(ctx, 1, 20)
	if err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	for it, want := range map[int64]bool{10: false, 20: true, 30: false, 40: true} {
		if ok, _ := s.Has(ctx, it); ok != want {
			t.Errorf("iteration %d: expected present=%v", it, want)
		}
	}
}

func TestStore_VocabFingerprint(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	cp := testCheckpoint("fp", 7, 2, 2)
	cp.VocabFingerprint = "abc123"
	if err := s.Save(ctx, cp); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got.VocabFingerprint != "abc123" {
		t.Errorf("expected fingerprint abc123 from Get, got %q", got.VocabFingerprint)
	}
	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest.VocabFingerprint != "abc123" {
		t.Errorf("expected fingerprint abc123 from Latest, got %q", latest.VocabFingerprint)
	}
	infos, err := s.List(ctx, store.ListOptions{})
	if err != nil || len(infos) != 1 {
		t.Fatalf("expected one checkpoint, got %v %v", infos, err)
	}
	if infos[0].VocabFingerprint != "abc123" {
		t.Errorf("expected fingerprint abc123 from List, got %q", infos[0].VocabFingerprint)
	}
}

func TestNew_MigratesFingerprintColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	_, err = db.Exec(`
		CREATE TABLE checkpoints (
			iteration INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			vocab_size INTEGER NOT NULL,
			dimensions INTEGER NOT NULL,
			embeddings BLOB NOT NULL,
			nce_weights BLOB NOT NULL,
			nce_biases BLOB NOT NULL,
			loss REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err == nil {
		_, err = db.Exec(`
			INSERT INTO checkpoints (iteration, id, vocab_size, dimensions, embeddings, nce_weights, nce_biases)
			VALUES (5, 'old', 1, 1, ?, ?, ?)
		`, float64ToBytes([]float64{1}), float64ToBytes([]float64{2}), float64ToBytes([]float64{3}))
	}
	db.Close()
	if err != nil {
		t.Fatalf("failed to create old schema: %v", err)
	}

	s, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("failed to open old database: %v", err)
	}
	defer s.Close()

	got, err := s.Get(context.Background(), 5)
	if err != nil {
		t.Fatalf("failed to read migrated checkpoint: %v", err)
	}
	if got.ID != "old" || got.VocabFingerprint != "" {
		t.Errorf("expected old checkpoint without fingerprint, got %q %q", got.ID, got.VocabFingerprint)
	}

	// reopening an upgraded database is a no-op
	s2, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("failed to reopen migrated database: %v", err)
	}
	s2.Close()
}

func TestStore_Stats(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	ctx := context.Background()
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Checkpoints != 0 || stats.HasLatest {
		t.Errorf("expected empty stats, got %+v", stats)
	}

	s.Save(ctx, testCheckpoint("a", 3, 4, 3))
	s.Save(ctx, testCheckpoint("b", 9, 4, 3))

	stats, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Checkpoints != 2 {
		t.Errorf("expected 2 checkpoints, got %d", stats.Checkpoints)
	}
	if !stats.HasLatest || stats.LatestIteration != 9 {
		t.Errorf("expected latest 9, got %+v", stats)
	}
	if stats.OldestIteration != 3 {
		t.Errorf("expected oldest 3, got %d", stats.OldestIteration)
	}
	// 2 checkpoints x (12 + 12 + 4) float64s
	if stats.TotalParamsBytes != 2*28*8 {
		t.Errorf("expected %d parameter bytes, got %d", 2*28*8, stats.TotalParamsBytes)
	}
	if stats.StorageBytes <= 0 {
		t.Error("expected storage bytes to be reported")
	}
}

func TestStore_Compact(t *testing.T) {
	s := createTestStore(t)
	defer s.Close()

	if err := s.Compact(context.Background()); err != nil {
		t.Errorf("failed to compact: %v", err)
	}
}

func TestStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := New(Config{Path: dbPath})
	if err != nil {
		t.Fatal(err)
	}
	s.Save(context.Background(), testCheckpoint("a", 12, 2, 2))
	s.Close()

	s, err = New(Config{Path: dbPath})
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s.Close()

	latest, err := s.Latest(context.Background())
	if err != nil || latest.Iteration != 12 {
		t.Errorf("expected latest 12 after reopen, got %v %v", latest, err)
	}
}

// Helpers

func createTestStore(t *testing.T) *Store {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	s, err := New(Config{Path: dbPath})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return s
}

func testCheckpoint(id string, iteration int64, vocab, dims int) *types.Checkpoint {
	cp := &types.Checkpoint{
		ID:         id,
		Iteration:  iteration,
		VocabSize:  vocab,
		Dimensions: dims,
		Embeddings: make([]float64, vocab*dims),
		NCEWeights: make([]float64, vocab*dims),
		NCEBiases:  make([]float64, vocab),
		Loss:       1.5,
	}
	for i := range cp.Embeddings {
		cp.Embeddings[i] = float64(i)*0.1 - 0.3
		cp.NCEWeights[i] = float64(i) * -0.05
	}
	for i := range cp.NCEBiases {
		cp.NCEBiases[i] = float64(i) * 0.01
	}
	return cp
}

func BenchmarkStore_Save(b *testing.B) {
	dbPath := filepath.Join(b.TempDir(), "bench.db")
	s, _ := New(Config{Path: dbPath})
	defer s.Close()

	cp := testCheckpoint("bench", 0, 1000, 64)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cp.Iteration = int64(i)
		cp.ID = fmt.Sprintf("bench-%d", i)
		s.Save(ctx, cp)
	}
}
