package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/vedanta-labs/vaidya/internal/models"
)

// PairScorer scores the relevance of a passage to a query. Higher is more
// relevant. Scores are only comparable within a single query.
type PairScorer interface {
	Score(ctx context.Context, query, text string) (float64, error)
	Close() error
}

// Reranker reorders fused retrieval hits by pair relevance and keeps the
// top keep hits.
type Reranker struct {
	scorer PairScorer
	keep   int
}

// NewReranker creates a reranker keeping at most keep hits.
func NewReranker(scorer PairScorer, keep int) *Reranker {
	return &Reranker{scorer: scorer, keep: keep}
}

// Rerank scores every hit against the query and returns up to keep hits
// ordered by rerank score descending. The sort is stable, so hits with
// equal rerank scores keep their fused order. The input slice is not
// modified. Scoring and ordering always cover the full input: the result
// is a permutation of the input before the keep cut, and with keep <= 0
// no cut is applied at all.
func (r *Reranker) Rerank(ctx context.Context, query string, hits []*models.RetrievalHit) ([]*models.RetrievalHit, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	out := make([]*models.RetrievalHit, len(hits))
	for i, hit := range hits {
		score, err := r.scorer.Score(ctx, query, hit.Chunk.Text)
		if err != nil {
			return nil, fmt.Errorf("rerank chunk %d: %w", hit.Chunk.ID, err)
		}
		clone := *hit
		clone.RerankScore = score
		out[i] = &clone
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RerankScore > out[j].RerankScore
	})
	if r.keep > 0 && len(out) > r.keep {
		out = out[:r.keep]
	}
	return out, nil
}

// OverlapScorer is a model-free PairScorer using the Ochiai coefficient of
// the query and passage token sets. It serves as the fallback when no
// cross-encoder model is available; rankings are coarse but deterministic.
type OverlapScorer struct{}

// Score returns |intersection| / sqrt(|Q|*|T|) over lowercased token sets.
func (OverlapScorer) Score(_ context.Context, query, text string) (float64, error) {
	qs := tokenSet(query)
	ts := tokenSet(text)
	if len(qs) == 0 || len(ts) == 0 {
		return 0, nil
	}
	common := 0
	for tok := range qs {
		if _, ok := ts[tok]; ok {
			common++
		}
	}
	if common == 0 {
		return 0, nil
	}
	return float64(common) / geoMean(len(qs), len(ts)), nil
}

// Close is a no-op for OverlapScorer.
func (OverlapScorer) Close() error { return nil }

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		if tok = normalizeToken(tok); tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

func normalizeToken(tok string) string {
	return strings.Trim(strings.ToLower(tok), ".,;:!?()[]\"'")
}

func geoMean(a, b int) float64 {
	return math.Sqrt(float64(a) * float64(b))
}
