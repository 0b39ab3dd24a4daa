package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/truongthanh96/Word2Vec/internal/store"
	"github.com/truongthanh96/Word2Vec/pkg/types"

	_ "github.com/mattn/go-sqlite3"
)

const latestPointer = "latest"

// Store implements store.Store using SQLite
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Config configures the SQLite store
type Config struct {
	Path string // Path to database file
}

// New creates a new SQLite store
func New(cfg Config) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA cache_size = -32000",       // 32MB cache
		"PRAGMA temp_store = MEMORY",       // temp tables in memory
		"PRAGMA mmap_size = 268435456",     // 256MB mmap
		"PRAGMA page_size = 4096",          // optimal for SSD
		"PRAGMA auto_vacuum = INCREMENTAL", // gradual space reclaim
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{
		db:   db,
		path: cfg.Path,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the database tables
func (s *Store) initSchema() error {
	schema := `
	-- One row per saved trainer snapshot
	CREATE TABLE IF NOT EXISTS checkpoints (
		iteration INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		vocab_size INTEGER NOT NULL,
		vocab_fingerprint TEXT NOT NULL DEFAULT '',
		dimensions INTEGER NOT NULL,
		embeddings BLOB NOT NULL,  -- float64 little-endian, row-major
		nce_weights BLOB NOT NULL, -- float64 little-endian, row-major
		nce_biases BLOB NOT NULL,  -- float64 little-endian
		loss REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_checkpoints_created_at ON checkpoints(created_at);

	-- Named pointers into checkpoints, currently only "latest"
	CREATE TABLE IF NOT EXISTS checkpoint_pointer (
		name TEXT PRIMARY KEY,
		iteration INTEGER NOT NULL
	);

	-- Schema version tracking
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.migrate()
}

// migrate upgrades databases created before the vocabulary fingerprint column
func (s *Store) migrate() error {
	rows, err := s.db.Query("SELECT name FROM pragma_table_info('checkpoints')")
	if err != nil {
		return fmt.Errorf("failed to read checkpoint columns: %w", err)
	}
	found := false
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan checkpoint column: %w", err)
		}
		if name == "vocab_fingerprint" {
			found = true
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if !found {
		if _, err := s.db.Exec("ALTER TABLE checkpoints ADD COLUMN vocab_fingerprint TEXT NOT NULL DEFAULT ''"); err != nil {
			return fmt.Errorf("failed to add vocab_fingerprint column: %w", err)
		}
	}
	_, err = s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (2)")
	return err
}

// Save writes a checkpoint and points latest at it in one transaction
func (s *Store) Save(ctx context.Context, cp *types.Checkpoint) error {
	if err := validate(cp); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO checkpoints
			(iteration, id, vocab_size, vocab_fingerprint, dimensions, embeddings, nce_weights, nce_biases, loss, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		cp.Iteration,
		cp.ID,
		cp.VocabSize,
		cp.VocabFingerprint,
		cp.Dimensions,
		float64ToBytes(cp.Embeddings),
		float64ToBytes(cp.NCEWeights),
		float64ToBytes(cp.NCEBiases),
		cp.Loss,
		cp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert checkpoint: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO checkpoint_pointer (name, iteration) VALUES (?, ?)",
		latestPointer, cp.Iteration,
	)
	if err != nil {
		return fmt.Errorf("failed to update latest pointer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

// validate checks that parameter lengths agree with the declared shape
func validate(cp *types.Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("checkpoint is nil")
	}
	if cp.ID == "" {
		return fmt.Errorf("checkpoint id is required")
	}
	if cp.VocabSize <= 0 || cp.Dimensions <= 0 {
		return fmt.Errorf("invalid checkpoint shape %dx%d", cp.VocabSize, cp.Dimensions)
	}
	n := cp.VocabSize * cp.Dimensions
	if len(cp.Embeddings) != n || len(cp.NCEWeights) != n || len(cp.NCEBiases) != cp.VocabSize {
		return fmt.Errorf("checkpoint parameters do not match shape %dx%d", cp.VocabSize, cp.Dimensions)
	}
	return nil
}

// Get retrieves the checkpoint saved at iteration
func (s *Store) Get(ctx context.Context, iteration int64) (*types.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT iteration, id, vocab_size, vocab_fingerprint, dimensions, embeddings, nce_weights, nce_biases, loss, created_at
		FROM checkpoints WHERE iteration = ?
	`, iteration)
	return scanCheckpoint(row)
}

// Latest retrieves the checkpoint named by the latest pointer
func (s *Store) Latest(ctx context.Context) (*types.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT c.iteration, c.id, c.vocab_size, c.vocab_fingerprint, c.dimensions, c.embeddings, c.nce_weights, c.nce_biases, c.loss, c.created_at
		FROM checkpoint_pointer p JOIN checkpoints c ON c.iteration = p.iteration
		WHERE p.name = ?
	`, latestPointer)
	return scanCheckpoint(row)
}

// Has reports whether a checkpoint exists for iteration
func (s *Store) Has(ctx context.Context, iteration int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM checkpoints WHERE iteration = ?", iteration).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check checkpoint: %w", err)
	}
	return n > 0, nil
}

// List returns checkpoint metadata ordered by iteration
func (s *Store) List(ctx context.Context, opts store.ListOptions) ([]types.CheckpointInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order := "ASC"
	if opts.Descending {
		order = "DESC"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // no limit
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.iteration, c.vocab_size, c.vocab_fingerprint, c.dimensions, c.loss, c.created_at,
			c.iteration = COALESCE((SELECT iteration FROM checkpoint_pointer WHERE name = ?), -1)
		FROM checkpoints c
		ORDER BY c.iteration %s
		LIMIT ? OFFSET ?
	`, order)

	rows, err := s.db.QueryContext(ctx, query, latestPointer, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var infos []types.CheckpointInfo
	for rows.Next() {
		var info types.CheckpointInfo
		if err := rows.Scan(
			&info.ID,
			&info.Iteration,
			&info.VocabSize,
			&info.VocabFingerprint,
			&info.Dimensions,
			&info.Loss,
			&info.CreatedAt,
			&info.Latest,
		); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		infos = append(infos, info)
	}

	return infos, rows.Err()
}

// Prune deletes all but the keep most recent checkpoints, sparing the latest
// pointer and every pinned iteration
func (s *Store) Prune(ctx context.Context, keep int, pinned ...int64) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1, got %d", keep)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		DELETE FROM checkpoints
		WHERE iteration NOT IN (SELECT iteration FROM checkpoints ORDER BY iteration DESC LIMIT ?)
		AND iteration NOT IN (SELECT iteration FROM checkpoint_pointer)`
	args := []any{keep}
	if len(pinned) > 0 {
		query += " AND iteration NOT IN (?" + strings.Repeat(", ?", len(pinned)-1) + ")"
		for _, it := range pinned {
			args = append(args, it)
		}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to prune checkpoints: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned checkpoints: %w", err)
	}
	if removed > 0 {
		// Reclaim freed pages without a full VACUUM
		if _, err := s.db.ExecContext(ctx, "PRAGMA incremental_vacuum"); err != nil {
			return int(removed), fmt.Errorf("failed to reclaim space: %w", err)
		}
	}
	return int(removed), nil
}

// Stats returns storage statistics
func (s *Store) Stats(ctx context.Context) (*types.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &types.StoreStats{}

	var oldest sql.NullInt64
	var params sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(iteration),
			SUM(LENGTH(embeddings) + LENGTH(nce_weights) + LENGTH(nce_biases))
		FROM checkpoints
	`).Scan(&stats.Checkpoints, &oldest, &params)
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint count: %w", err)
	}
	stats.OldestIteration = oldest.Int64
	stats.TotalParamsBytes = params.Int64

	err = s.db.QueryRowContext(ctx,
		"SELECT iteration FROM checkpoint_pointer WHERE name = ?", latestPointer,
	).Scan(&stats.LatestIteration)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to get latest pointer: %w", err)
	default:
		stats.HasLatest = true
	}

	if info, err := os.Stat(s.path); err == nil {
		stats.StorageBytes = info.Size()
	}

	return stats, nil
}

// Close releases resources
func (s *Store) Close() error {
	return s.db.Close()
}

// Compact optimizes storage
func (s *Store) Compact(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// scanCheckpoint scans a single row into a Checkpoint
func scanCheckpoint(row *sql.Row) (*types.Checkpoint, error) {
	var cp types.Checkpoint
	var emb, weights, biases []byte

	err := row.Scan(
		&cp.Iteration,
		&cp.ID,
		&cp.VocabSize,
		&cp.VocabFingerprint,
		&cp.Dimensions,
		&emb,
		&weights,
		&biases,
		&cp.Loss,
		&cp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCheckpointNotFound
		}
		return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
	}

	if cp.Embeddings, err = bytesToFloat64(emb); err != nil {
		return nil, fmt.Errorf("failed to decode embeddings: %w", err)
	}
	if cp.NCEWeights, err = bytesToFloat64(weights); err != nil {
		return nil, fmt.Errorf("failed to decode nce weights: %w", err)
	}
	if cp.NCEBiases, err = bytesToFloat64(biases); err != nil {
		return nil, fmt.Errorf("failed to decode nce biases: %w", err)
	}

	return &cp, nil
}

var _ store.Store = (*Store)(nil)
