package retrieval

import (
	"math"

	"github.com/vedanta-labs/vaidya/internal/models"
)

// CorpusStats holds per-term document frequencies over the chunk corpus.
// The corpus is immutable at runtime, so the stats are built once at
// startup and read concurrently without locking.
type CorpusStats struct {
	docFreq     map[string]int
	totalChunks int
}

// NewCorpusStats counts, for every token, the number of chunks containing
// it at least once.
func NewCorpusStats(chunks []*models.ChunkRecord) *CorpusStats {
	s := &CorpusStats{
		docFreq:     make(map[string]int),
		totalChunks: len(chunks),
	}
	for _, c := range chunks {
		for tok := range tokenSet(c.Text) {
			s.docFreq[tok]++
		}
	}
	return s
}

// IDF returns log((N+1)/f) for the term, where f is its document frequency
// floored at 1. Terms absent from the corpus score as if they appeared in
// one chunk, which gives unseen symptom words the maximum boost.
func (s *CorpusStats) IDF(term string) float64 {
	f := s.docFreq[normalizeToken(term)]
	if f < 1 {
		f = 1
	}
	return math.Log(float64(s.totalChunks+1) / float64(f))
}

// Weight returns the summed IDF over the words of a phrase. Rare phrases
// score high, boilerplate phrases score near zero.
func (s *CorpusStats) Weight(phrase string) float64 {
	var score float64
	for tok := range tokenSet(phrase) {
		score += s.IDF(tok)
	}
	return score
}

// TotalChunks returns the number of chunks the stats were built from.
func (s *CorpusStats) TotalChunks() int {
	return s.totalChunks
}
