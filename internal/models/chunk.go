// Package models defines core data structures for corpus chunks, retrieval
// hits, conversation turns, and diagnosis reports.
package models

// ChunkRecord is one indexed segment of corpus text with its metadata.
// Records are produced by the corpus build and are read-only at runtime.
// The metadata fields beyond Source are optional and empty when the corpus
// build did not tag them.
type ChunkRecord struct {
	ID              int64  `json:"id"`
	Text            string `json:"text"`
	Source          string `json:"source"`
	Chapter         string `json:"chapter,omitempty"`
	Topic           string `json:"topic,omitempty"`
	Dosha           string `json:"dosha,omitempty"`
	Category        string `json:"category,omitempty"`
	DiseaseType     string `json:"disease_type,omitempty"`
	Srotas          string `json:"srotas,omitempty"`
	TreatmentType   string `json:"treatment_type,omitempty"`
	LevelOfCare     string `json:"level_of_care,omitempty"`
	FormulationType string `json:"formulation_type,omitempty"`
	// PrimarySystem is the body system the corpus enrichment pass assigned
	// to this chunk (circulatory, digestive, ...). Empty or "other" means
	// unclassified; system-filtered retrieval skips such chunks only when a
	// concrete system is requested.
	PrimarySystem string `json:"primary_system,omitempty"`
	// Vector is the L2-normalized embedding. It lives in the vector index
	// artifact and is not serialized with the metadata.
	Vector []float32 `json:"-"`
}

// RetrievalHit is a scored candidate for one query. Hits are created per
// query and discarded after the turn; they are never persisted.
type RetrievalHit struct {
	Chunk        *ChunkRecord `json:"chunk"`
	DenseScore   float64      `json:"dense_score"`
	LexicalScore float64      `json:"lexical_score"`
	FusedScore   float64      `json:"fused_score"`
	RerankScore  float64      `json:"rerank_score"`
}
