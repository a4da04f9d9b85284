// Package keyword provides the lexical (BM25) half of hybrid retrieval.
package keyword

import "context"

// Filter restricts lexical hits by chunk metadata. Zero-value fields are
// not restrictions.
type Filter struct {
	// Source restricts hits to one source document.
	Source string
	// System restricts hits to chunks tagged with one body system.
	System string
}

// Index defines lexical search over the chunk corpus.
type Index interface {
	// Search returns up to limit chunk ids ranked by BM25 relevance,
	// restricted by the non-empty fields of filter.
	Search(ctx context.Context, query string, limit int, filter Filter) ([]*Result, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a single lexical search hit.
type Result struct {
	ID    int64
	Score float64
}
