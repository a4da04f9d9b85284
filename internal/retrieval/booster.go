package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/vedanta-labs/vaidya/internal/embedding"
)

// SymptomBooster builds query vectors in which rare symptom words weigh
// more than common ones. The base query embedding is summed with every
// query word's embedding scaled by its corpus IDF, so a query like "mild
// fever with trika pain" is pulled toward the region of the rare term
// rather than averaged away by the common ones.
type SymptomBooster struct {
	embedder embedding.Embedder
	stats    *CorpusStats
}

// NewSymptomBooster creates a booster over the given corpus statistics.
func NewSymptomBooster(embedder embedding.Embedder, stats *CorpusStats) *SymptomBooster {
	return &SymptomBooster{embedder: embedder, stats: stats}
}

// WeightedQueryVector returns the L2-normalized boosted embedding for
// query. The base embedding carries the query instruction prefix like any
// dense search; the per-word embeddings are raw.
func (b *SymptomBooster) WeightedQueryVector(ctx context.Context, query string) ([]float32, error) {
	base, err := b.embedder.Embed(ctx, QueryInstruction+query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var words []string
	for _, tok := range strings.Fields(query) {
		if tok = normalizeToken(tok); tok != "" {
			words = append(words, tok)
		}
	}
	if len(words) == 0 {
		return base, nil
	}

	wordVecs, err := b.embedder.EmbedBatch(ctx, words)
	if err != nil {
		return nil, fmt.Errorf("embed query words: %w", err)
	}

	boosted := make([]float32, len(base))
	copy(boosted, base)
	for i, vec := range wordVecs {
		weight := float32(b.stats.IDF(words[i]))
		for d := range boosted {
			boosted[d] += vec[d] * weight
		}
	}
	embedding.NormalizeL2(boosted)
	return boosted, nil
}
