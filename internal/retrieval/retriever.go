package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vedanta-labs/vaidya/internal/config"
	"github.com/vedanta-labs/vaidya/internal/embedding"
	"github.com/vedanta-labs/vaidya/internal/keyword"
	"github.com/vedanta-labs/vaidya/internal/models"
	"github.com/vedanta-labs/vaidya/internal/storage"
	"github.com/vedanta-labs/vaidya/internal/vector"
)

// ErrEmptyCorpus is returned when retrieval is attempted against a store
// with zero chunks. This is fatal for the caller; there is nothing to
// ground answers in.
var ErrEmptyCorpus = errors.New("retrieval: corpus has no chunks")

// QueryInstruction is the prefix BGE-family embedding models expect on
// search queries. Corpus vectors are embedded without it.
const QueryInstruction = "Represent this sentence for searching relevant passages: "

// filterOverFetch is how many times more dense candidates are requested
// when a metadata filter is active, so post-filtering does not starve the
// result set.
const filterOverFetch = 10

// boostOverFetch is how many times more dense candidates the boosted mode
// fetches before reordering by term overlap.
const boostOverFetch = 5

// SystemOther is the classifier's catch-all body system. It is never a
// retrieval restriction.
const SystemOther = "other"

// chunkFilter restricts hits by chunk metadata. Zero-value fields are not
// restrictions.
type chunkFilter struct {
	source string
	system string
}

func (f chunkFilter) active() bool {
	return f.source != "" || f.system != ""
}

func (f chunkFilter) matches(c *models.ChunkRecord) bool {
	if f.source != "" && c.Source != f.source {
		return false
	}
	if f.system != "" && c.PrimarySystem != f.system {
		return false
	}
	return true
}

// Retriever fuses dense nearest-neighbor search with lexical BM25 over the
// same corpus. It is read-only and safe for concurrent use across sessions.
type Retriever struct {
	embedder embedding.Embedder
	vectors  vector.Index
	lexical  keyword.Index
	store    storage.ChunkStore
	booster  *SymptomBooster
	cfg      *config.RetrievalConfig
	logger   *zap.Logger
}

// NewRetriever creates a hybrid retriever over the loaded corpus artifacts.
// stats may be nil; boosted retrieval then degrades to the plain hybrid
// search.
func NewRetriever(
	embedder embedding.Embedder,
	vectors vector.Index,
	lexical keyword.Index,
	store storage.ChunkStore,
	stats *CorpusStats,
	cfg *config.RetrievalConfig,
	logger *zap.Logger,
) *Retriever {
	r := &Retriever{
		embedder: embedder,
		vectors:  vectors,
		lexical:  lexical,
		store:    store,
		cfg:      cfg,
		logger:   logger,
	}
	if stats != nil {
		r.booster = NewSymptomBooster(embedder, stats)
	}
	return r
}

// Retrieve returns up to k hits for query ordered by fused score
// descending. An empty query returns an empty result, not an error. When
// sourceFilter is non-empty, hits are restricted to that source document.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, sourceFilter string) ([]*models.RetrievalHit, error) {
	return r.retrieve(ctx, query, k, chunkFilter{source: sourceFilter})
}

// RetrieveBySystem restricts hits to chunks tagged with the given body
// system. An empty system or "other" is not a restriction. When the
// filtered search cannot fill k, the result falls back to the unfiltered
// search rather than returning a starved set.
func (r *Retriever) RetrieveBySystem(ctx context.Context, query string, k int, system string) ([]*models.RetrievalHit, error) {
	if system == "" || system == SystemOther {
		return r.retrieve(ctx, query, k, chunkFilter{})
	}
	hits, err := r.retrieve(ctx, query, k, chunkFilter{system: system})
	if err != nil {
		return nil, err
	}
	want := k
	if want <= 0 {
		want = r.cfg.DefaultCount
	}
	if len(hits) >= want {
		return hits, nil
	}
	r.logger.Debug("system filter starved, falling back to unfiltered search",
		zap.String("system", system),
		zap.Int("filtered", len(hits)),
	)
	return r.retrieve(ctx, query, k, chunkFilter{})
}

// RetrieveBoosted searches with an IDF-weighted query vector and reorders
// the dense candidates by raw term overlap with the query: rare symptom
// words pull the query vector toward their corpus region, and the overlap
// ordering keeps literal matches on top. Without corpus stats this is the
// plain hybrid search.
func (r *Retriever) RetrieveBoosted(ctx context.Context, query string, k int) ([]*models.RetrievalHit, error) {
	if r.booster == nil {
		return r.retrieve(ctx, query, k, chunkFilter{})
	}
	if r.vectors.Size() == 0 {
		return nil, ErrEmptyCorpus
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if k <= 0 {
		k = r.cfg.DefaultCount
	}

	vec, err := r.booster.WeightedQueryVector(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := r.vectors.Search(ctx, vec, k*boostOverFetch)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(results))
	for i, res := range results {
		ids[i] = res.ID
	}
	chunks, err := r.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	queryTokens := tokenSet(query)
	hits := make([]*models.RetrievalHit, len(results))
	for i, res := range results {
		overlap := 0
		for tok := range tokenSet(chunks[i].Text) {
			if _, ok := queryTokens[tok]; ok {
				overlap++
			}
		}
		hits[i] = &models.RetrievalHit{
			Chunk:      chunks[i],
			DenseScore: res.Score,
			FusedScore: float64(overlap),
		}
	}
	// Ties keep the dense order.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].FusedScore > hits[j].FusedScore
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// RetrieveIDs is the pure, side-effect-free mode used by evaluation: it
// returns ranked chunk ids only, without loading metadata.
func (r *Retriever) RetrieveIDs(ctx context.Context, query string, k int) ([]int64, error) {
	fused, err := r.fuse(ctx, query, k, chunkFilter{})
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(fused))
	for i, c := range fused {
		ids[i] = c.ID
	}
	return ids, nil
}

func (r *Retriever) retrieve(ctx context.Context, query string, k int, filter chunkFilter) ([]*models.RetrievalHit, error) {
	fused, err := r.fuse(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}
	if len(fused) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(fused))
	for i, c := range fused {
		ids[i] = c.ID
	}
	chunks, err := r.store.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	hits := make([]*models.RetrievalHit, len(fused))
	for i, c := range fused {
		hits[i] = &models.RetrievalHit{
			Chunk:        chunks[i],
			DenseScore:   c.DenseScore,
			LexicalScore: c.LexicalScore,
			FusedScore:   c.FusedScore,
		}
	}
	return hits, nil
}

func (r *Retriever) fuse(ctx context.Context, query string, k int, filter chunkFilter) ([]*FusedCandidate, error) {
	if r.vectors.Size() == 0 {
		return nil, ErrEmptyCorpus
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if k <= 0 {
		k = r.cfg.DefaultCount
	}

	denseK := k
	if r.cfg.DenseCandidates > denseK {
		denseK = r.cfg.DenseCandidates
	}
	lexicalK := k
	if r.cfg.LexicalCandidates > lexicalK {
		lexicalK = r.cfg.LexicalCandidates
	}
	if filter.active() {
		denseK *= filterOverFetch
	}

	var (
		denseResults   []*vector.Result
		lexicalResults []*keyword.Result
		wg             sync.WaitGroup
		errChan        = make(chan error, 2)
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		emb, err := r.embedder.Embed(ctx, QueryInstruction+query)
		if err != nil {
			errChan <- fmt.Errorf("embed query: %w", err)
			return
		}
		results, err := r.vectors.Search(ctx, emb, denseK)
		if err != nil {
			errChan <- fmt.Errorf("dense search: %w", err)
			return
		}
		if filter.active() {
			results, err = r.filterDense(ctx, results, filter)
			if err != nil {
				errChan <- err
				return
			}
		}
		denseResults = results
	}()

	if r.cfg.Hybrid() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := r.lexical.Search(ctx, query, lexicalK,
				keyword.Filter{Source: filter.source, System: filter.system})
			if err != nil {
				errChan <- fmt.Errorf("lexical search: %w", err)
				return
			}
			lexicalResults = results
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fused := FuseRRF(denseResults, lexicalResults, r.cfg.RRFK, r.cfg.DenseWeight, r.cfg.LexicalWeight)
	if len(fused) > k {
		fused = fused[:k]
	}
	r.logger.Debug("retrieval complete",
		zap.Int("dense", len(denseResults)),
		zap.Int("lexical", len(lexicalResults)),
		zap.Int("fused", len(fused)),
	)
	return fused, nil
}

func (r *Retriever) filterDense(ctx context.Context, results []*vector.Result, filter chunkFilter) ([]*vector.Result, error) {
	filtered := make([]*vector.Result, 0, len(results))
	for _, res := range results {
		chunk, err := r.store.GetChunk(ctx, res.ID)
		if err != nil {
			return nil, fmt.Errorf("load chunk for metadata filter: %w", err)
		}
		if filter.matches(chunk) {
			filtered = append(filtered, res)
		}
	}
	return filtered, nil
}
