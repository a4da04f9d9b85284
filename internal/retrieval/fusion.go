// Package retrieval provides hybrid dense+lexical retrieval with rank
// fusion, and reranking of the fused candidates.
package retrieval

import (
	"sort"

	"github.com/vedanta-labs/vaidya/internal/keyword"
	"github.com/vedanta-labs/vaidya/internal/vector"
)

// FusedCandidate is one chunk id with its component and fused scores.
type FusedCandidate struct {
	ID           int64
	DenseScore   float64
	LexicalScore float64
	FusedScore   float64
}

// FuseRRF merges dense and lexical result lists with weighted Reciprocal
// Rank Fusion. A chunk appearing in only one list competes on that single
// contribution; the missing list contributes zero, not a penalty. Output is
// sorted by fused score descending, ties broken by ascending id so that
// identical queries always rank identically.
func FuseRRF(dense []*vector.Result, lexical []*keyword.Result, rrfK, denseWeight, lexicalWeight float64) []*FusedCandidate {
	if rrfK <= 0 {
		rrfK = 60
	}
	byID := make(map[int64]*FusedCandidate)

	for rank, r := range dense {
		c, ok := byID[r.ID]
		if !ok {
			c = &FusedCandidate{ID: r.ID}
			byID[r.ID] = c
		}
		c.DenseScore = r.Score
		c.FusedScore += denseWeight / (rrfK + float64(rank+1))
	}
	for rank, r := range lexical {
		c, ok := byID[r.ID]
		if !ok {
			c = &FusedCandidate{ID: r.ID}
			byID[r.ID] = c
		}
		c.LexicalScore = r.Score
		c.FusedScore += lexicalWeight / (rrfK + float64(rank+1))
	}

	out := make([]*FusedCandidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}
