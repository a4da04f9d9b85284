// Package embedding provides text embedding via ONNX or a remote model
// server, with caching. All embedders return L2-normalized vectors so that
// inner product equals cosine similarity downstream.
package embedding

import "context"

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
