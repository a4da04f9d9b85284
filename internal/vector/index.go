// Package vector provides the dense vector index and similarity search.
package vector

import "context"

// Index is the dense half of the corpus artifact: chunk embeddings keyed by
// integer id, searchable by inner product.
type Index interface {
	Add(ctx context.Context, ids []int64, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Save(path string) error
	Load(path string) error
	// IDs returns every indexed id, used for the load-time integrity check
	// against the metadata store.
	IDs() []int64
	Size() int
	Dimensions() int
	Close() error
}

// Result is a single dense search hit. Score is the inner product, which
// equals cosine similarity for L2-normalized vectors.
type Result struct {
	ID    int64
	Score float64
}
