package embedding

import (
	"context"
	"fmt"
	"math"
)

// MockEmbedder is a deterministic embedder for tests. The same text always
// produces the same unit vector, derived from the text hash.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}

// StaticEmbedder maps exact texts to fixed vectors, for tests that need
// controlled similarities (e.g. safety gate thresholds). Unknown texts fall
// back to the deterministic hash embedding.
type StaticEmbedder struct {
	dimensions int
	vectors    map[string][]float32
	fallback   *MockEmbedder
}

// NewStaticEmbedder returns a StaticEmbedder over the given text-to-vector
// map. All vectors must have the given dimension and should be normalized.
func NewStaticEmbedder(dimensions int, vectors map[string][]float32) (*StaticEmbedder, error) {
	for text, v := range vectors {
		if len(v) != dimensions {
			return nil, fmt.Errorf("vector for %q has dimension %d, want %d", text, len(v), dimensions)
		}
	}
	return &StaticEmbedder{
		dimensions: dimensions,
		vectors:    vectors,
		fallback:   NewMockEmbedder(dimensions),
	}, nil
}

// Embed returns the configured vector for text, or the hash fallback.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out, nil
	}
	return e.fallback.Embed(ctx, text)
}

// EmbedBatch calls Embed for each text.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for StaticEmbedder.
func (e *StaticEmbedder) Close() error {
	return nil
}

// NormalizeL2 normalizes the slice in place to unit L2 norm. A zero vector
// is left unchanged.
func NormalizeL2(x []float32) {
	var sum float32
	for _, v := range x {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range x {
		x[i] *= norm
	}
}
