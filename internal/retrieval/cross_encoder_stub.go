//go:build !cgo
// +build !cgo

package retrieval

import (
	"context"
	"errors"
)

var errNoCGO = errors.New("cross-encoder reranking requires CGO; rebuild with CGO_ENABLED=1 or use the overlap scorer")

// CrossEncoder is unavailable without CGO; every method returns an error.
type CrossEncoder struct{}

func NewCrossEncoder(modelPath string, maxTokens int) (*CrossEncoder, error) {
	return nil, errNoCGO
}

func (c *CrossEncoder) Score(ctx context.Context, query, text string) (float64, error) {
	return 0, errNoCGO
}

func (c *CrossEncoder) Close() error { return nil }
