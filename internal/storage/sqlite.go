package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/policyqa/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS chunks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		source TEXT NOT NULL,
		content TEXT NOT NULL,
		category TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source);
	`

func initSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// InsertChunk inserts a chunk and sets its insertion sequence.
func (s *SQLiteStorage) InsertChunk(ctx context.Context, chunk *models.Chunk) error {
	if chunk.CreatedAt.IsZero() {
		chunk.CreatedAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (id, source, content, category, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		chunk.ID, chunk.Source, chunk.Content, chunk.Category, chunk.CreatedAt,
	)
	if err != nil {
		return err
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read chunk sequence: %w", err)
	}
	chunk.Seq = seq
	return nil
}

// GetChunk returns a chunk by sequence.
func (s *SQLiteStorage) GetChunk(ctx context.Context, seq int64) (*models.Chunk, error) {
	var ch models.Chunk
	err := s.db.QueryRowContext(ctx,
		`SELECT seq, id, source, content, category, created_at
		 FROM chunks WHERE seq = ?`, seq,
	).Scan(&ch.Seq, &ch.ID, &ch.Source, &ch.Content, &ch.Category, &ch.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk not found: %d", seq)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetChunksBySeq returns the chunks with the given sequences, keyed by sequence.
// Missing sequences are absent from the map.
func (s *SQLiteStorage) GetChunksBySeq(ctx context.Context, seqs []int64) (map[int64]*models.Chunk, error) {
	out := make(map[int64]*models.Chunk, len(seqs))
	if len(seqs) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(seqs))
	args := make([]interface{}, len(seqs))
	for i, seq := range seqs {
		placeholders[i] = "?"
		args[i] = seq
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, source, content, category, created_at
		 FROM chunks WHERE seq IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ch models.Chunk
		if err := rows.Scan(&ch.Seq, &ch.ID, &ch.Source, &ch.Content, &ch.Category, &ch.CreatedAt); err != nil {
			return nil, err
		}
		out[ch.Seq] = &ch
	}
	return out, rows.Err()
}

// DeleteChunk removes a chunk by sequence.
func (s *SQLiteStorage) DeleteChunk(ctx context.Context, seq int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE seq = ?", seq)
	return err
}

// ListSources returns the distinct chunk sources in ascending order.
func (s *SQLiteStorage) ListSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT source FROM chunks ORDER BY source")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sources := make([]string, 0)
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

// CountChunksBySource returns the number of chunks stored for source.
func (s *SQLiteStorage) CountChunksBySource(ctx context.Context, source string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE source = ?", source).Scan(&n)
	return n, err
}

// Clear drops the chunk table and recreates it empty. Sequences restart.
func (s *SQLiteStorage) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS chunks"); err != nil {
		return fmt.Errorf("failed to drop chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to recreate schema: %w", err)
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
