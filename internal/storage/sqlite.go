// Package storage provides the SQLite implementation of ChunkStore.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vedanta-labs/vaidya/internal/models"
)

// SQLiteStore reads chunk metadata from the SQLite artifact produced by the
// corpus build. The database is opened read-only; nothing here mutates it.
type SQLiteStore struct {
	db *sql.DB
}

const chunkColumns = `id, text, source, chapter, topic, dosha, category,
	disease_type, srotas, treatment_type, level_of_care, formulation_type,
	primary_system`

// OpenSQLite opens the metadata database at dbPath and verifies the chunks
// table exists.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open metadata db: %w", err)
	}
	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='chunks'`).Scan(&name)
	if err == sql.ErrNoRows {
		_ = db.Close()
		return nil, fmt.Errorf("metadata db %s has no chunks table", dbPath)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("inspect metadata db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// GetChunk returns the chunk with the given id.
func (s *SQLiteStore) GetChunk(ctx context.Context, id int64) (*models.ChunkRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id = ?`, id)
	chunk, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// GetChunks returns the chunks with the given ids, in the given order.
// A missing id is an error: the caller's ids come from the vector index,
// which must agree with the store.
func (s *SQLiteStore) GetChunks(ctx context.Context, ids []int64) ([]*models.ChunkRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*models.ChunkRecord, len(ids))
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[chunk.ID] = chunk
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]*models.ChunkRecord, 0, len(ids))
	for _, id := range ids {
		chunk, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("chunk not found: %d", id)
		}
		out = append(out, chunk)
	}
	return out, nil
}

// AllChunks returns every chunk ordered by id.
func (s *SQLiteStore) AllChunks(ctx context.Context) ([]*models.ChunkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM chunks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ChunkRecord
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk)
	}
	return out, rows.Err()
}

// IDs returns all chunk ids ordered ascending.
func (s *SQLiteStore) IDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the number of chunks in the store.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChunk(row rowScanner) (*models.ChunkRecord, error) {
	var c models.ChunkRecord
	var chapter, topic, dosha, category, diseaseType sql.NullString
	var srotas, treatmentType, levelOfCare, formulationType sql.NullString
	var primarySystem sql.NullString
	err := row.Scan(&c.ID, &c.Text, &c.Source, &chapter, &topic, &dosha,
		&category, &diseaseType, &srotas, &treatmentType, &levelOfCare,
		&formulationType, &primarySystem)
	if err != nil {
		return nil, err
	}
	c.Chapter = chapter.String
	c.Topic = topic.String
	c.Dosha = dosha.String
	c.Category = category.String
	c.DiseaseType = diseaseType.String
	c.Srotas = srotas.String
	c.TreatmentType = treatmentType.String
	c.LevelOfCare = levelOfCare.String
	c.FormulationType = formulationType.String
	c.PrimarySystem = primarySystem.String
	return &c, nil
}
