// Package cli provides output helpers for the vaidya command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vedanta-labs/vaidya/internal/models"
)

// OutputFormat is the format for retrieval result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteHits writes retrieval hits to w in the given format. Use OutputJSON
// for parseable output consumable by other apps.
func WriteHits(w io.Writer, query string, hits []*models.RetrievalHit, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"query": query,
			"hits":  hits,
		})
	default:
		writeHitsText(w, query, hits)
		return nil
	}
}

func writeHitsText(w io.Writer, query string, hits []*models.RetrievalHit) {
	fmt.Fprintf(w, "\nFound %d results for %q\n\n", len(hits), query)
	for rank, hit := range hits {
		fmt.Fprintf(w, "---------------------------------------------------------\n")
		fmt.Fprintf(w, "Rank: %d | Fused: %.4f (Dense: %.4f, Lexical: %.4f, Rerank: %.4f)\n",
			rank+1, hit.FusedScore, hit.DenseScore, hit.LexicalScore, hit.RerankScore)
		fmt.Fprintf(w, "ID: %d | Source: %s\n", hit.Chunk.ID, hit.Chunk.Source)
		if hit.Chunk.Chapter != "" {
			fmt.Fprintf(w, "Chapter: %s\n", hit.Chunk.Chapter)
		}
		fmt.Fprintf(w, "\n%s\n\n", Truncate(hit.Chunk.Text, 200))
	}
}

// PrintHits prints retrieval hits to stdout in text format.
func PrintHits(query string, hits []*models.RetrievalHit) {
	_ = WriteHits(os.Stdout, query, hits, OutputText)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
