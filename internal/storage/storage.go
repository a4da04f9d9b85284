// Package storage defines the chunk metadata store consumed by retrieval.
// The store is one half of the corpus artifact; the vector index is the
// other. Both are produced by the external corpus build and are read-only
// at runtime.
package storage

import (
	"context"
	"errors"

	"github.com/vedanta-labs/vaidya/internal/models"
)

// ErrCorpusIntegrity is returned at load time when the vector index and the
// metadata store do not hold the same id set.
var ErrCorpusIntegrity = errors.New("corpus integrity: vector index and metadata id sets differ")

// ChunkStore provides read access to chunk metadata keyed by integer id.
type ChunkStore interface {
	GetChunk(ctx context.Context, id int64) (*models.ChunkRecord, error)
	GetChunks(ctx context.Context, ids []int64) ([]*models.ChunkRecord, error)
	// AllChunks returns every chunk ordered by id. Used to build the
	// in-memory lexical index at startup.
	AllChunks(ctx context.Context) ([]*models.ChunkRecord, error)
	IDs(ctx context.Context) ([]int64, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}

// VerifyIntegrity checks that the store and the vector index agree on the
// id set. An id present in one artifact but not the other means the corpus
// build is corrupt, which is fatal.
func VerifyIntegrity(ctx context.Context, store ChunkStore, indexIDs []int64) error {
	storeIDs, err := store.IDs(ctx)
	if err != nil {
		return err
	}
	if len(storeIDs) != len(indexIDs) {
		return ErrCorpusIntegrity
	}
	seen := make(map[int64]struct{}, len(storeIDs))
	for _, id := range storeIDs {
		seen[id] = struct{}{}
	}
	for _, id := range indexIDs {
		if _, ok := seen[id]; !ok {
			return ErrCorpusIntegrity
		}
	}
	return nil
}
