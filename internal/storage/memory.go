package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/vedanta-labs/vaidya/internal/models"
)

// MemoryStore is an in-memory ChunkStore for tests and small corpora loaded
// from a JSON metadata file.
type MemoryStore struct {
	byID  map[int64]*models.ChunkRecord
	order []int64
}

// NewMemoryStore builds a store from the given chunks.
func NewMemoryStore(chunks []*models.ChunkRecord) *MemoryStore {
	s := &MemoryStore{byID: make(map[int64]*models.ChunkRecord, len(chunks))}
	for _, c := range chunks {
		if _, ok := s.byID[c.ID]; ok {
			continue
		}
		s.byID[c.ID] = c
		s.order = append(s.order, c.ID)
	}
	sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })
	return s
}

// GetChunk returns the chunk with the given id.
func (s *MemoryStore) GetChunk(ctx context.Context, id int64) (*models.ChunkRecord, error) {
	c, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("chunk not found: %d", id)
	}
	return c, nil
}

// GetChunks returns the chunks with the given ids, in the given order.
func (s *MemoryStore) GetChunks(ctx context.Context, ids []int64) ([]*models.ChunkRecord, error) {
	out := make([]*models.ChunkRecord, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetChunk(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// AllChunks returns every chunk ordered by id.
func (s *MemoryStore) AllChunks(ctx context.Context) ([]*models.ChunkRecord, error) {
	out := make([]*models.ChunkRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

// IDs returns all chunk ids ordered ascending.
func (s *MemoryStore) IDs(ctx context.Context) ([]int64, error) {
	ids := make([]int64, len(s.order))
	copy(ids, s.order)
	return ids, nil
}

// Count returns the number of chunks.
func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	return int64(len(s.order)), nil
}

// Close is a no-op for MemoryStore.
func (s *MemoryStore) Close() error {
	return nil
}
