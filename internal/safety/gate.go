package safety

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/vedanta-labs/vaidya/internal/embedding"
	"github.com/vedanta-labs/vaidya/internal/vector"
)

// Assessment is the outcome of screening one utterance.
type Assessment struct {
	Risk             bool
	MatchedCondition string
	Similarity       float64
}

// Gate screens user utterances against the risk catalog by cosine
// similarity of embeddings. Condition vectors are embedded once at
// construction (and on Reload); Assess embeds only the utterance.
//
// Utterances are embedded raw, without the query instruction prefix. The
// conditions are symptom statements, not passages, so symmetric
// sentence-to-sentence similarity is what the threshold was tuned for.
type Gate struct {
	embedder  embedding.Embedder
	threshold float64
	logger    *zap.Logger

	mu         sync.RWMutex
	conditions []Condition
	vectors    [][]float32
	version    int
}

// NewGate builds a gate over the catalog, pre-embedding every condition
// description.
func NewGate(ctx context.Context, embedder embedding.Embedder, catalog *Catalog, threshold float64, logger *zap.Logger) (*Gate, error) {
	g := &Gate{
		embedder:  embedder,
		threshold: threshold,
		logger:    logger,
	}
	if err := g.Reload(ctx, catalog); err != nil {
		return nil, err
	}
	return g, nil
}

// Reload swaps in a new catalog atomically. Assessments running during the
// swap see either the old or the new catalog, never a mix.
func (g *Gate) Reload(ctx context.Context, catalog *Catalog) error {
	texts := make([]string, len(catalog.Conditions))
	for i, c := range catalog.Conditions {
		texts[i] = c.Description
	}
	vectors, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed risk conditions: %w", err)
	}

	g.mu.Lock()
	g.conditions = catalog.Conditions
	g.vectors = vectors
	g.version = catalog.Version
	g.mu.Unlock()

	g.logger.Info("risk catalog loaded",
		zap.Int("version", catalog.Version),
		zap.Int("conditions", len(catalog.Conditions)),
	)
	return nil
}

// Assess screens one utterance. It returns the highest-similarity condition
// at or above the threshold, or a no-risk assessment when nothing clears it.
func (g *Gate) Assess(ctx context.Context, utterance string) (*Assessment, error) {
	vec, err := g.embedder.Embed(ctx, utterance)
	if err != nil {
		return nil, fmt.Errorf("embed utterance: %w", err)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	best := &Assessment{}
	for i, cond := range g.conditions {
		sim := vector.CosineSimilarity(vec, g.vectors[i])
		if sim >= g.threshold && sim > best.Similarity {
			best.Risk = true
			best.MatchedCondition = cond.Name
			best.Similarity = sim
		}
	}
	if best.Risk {
		g.logger.Warn("risk pattern detected",
			zap.String("condition", best.MatchedCondition),
			zap.Float64("similarity", best.Similarity),
		)
	}
	return best, nil
}

// ConditionCount returns the number of loaded conditions.
func (g *Gate) ConditionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conditions)
}

// Threshold returns the configured similarity threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}
