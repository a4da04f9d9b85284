package keyword

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/vedanta-labs/vaidya/internal/models"
)

// BleveIndex implements Index with an in-memory Bleve index built from the
// chunk store at startup. The corpus is immutable at runtime, so there is
// nothing to persist or sync.
type BleveIndex struct {
	index bleve.Index
}

type chunkDoc struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	System string `json:"primary_system"`
}

// NewBleveIndex builds an in-memory BM25 index over the given chunks.
func NewBleveIndex(chunks []*models.ChunkRecord) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textField := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so clinical
	// terms match exactly; stemming mangles transliterated Sanskrit.
	textField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textField)
	sourceField := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("source", sourceField)
	systemField := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("primary_system", systemField)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}

	batch := index.NewBatch()
	for _, c := range chunks {
		doc := chunkDoc{Text: c.Text, Source: c.Source, System: c.PrimarySystem}
		if err := batch.Index(strconv.FormatInt(c.ID, 10), doc); err != nil {
			index.Close()
			return nil, fmt.Errorf("index chunk %d: %w", c.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, fmt.Errorf("build lexical index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Search runs a match query over chunk text, restricted by the non-empty
// filter fields as keyword term queries, and returns ranked ids.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, filter Filter) ([]*Result, error) {
	match := bleve.NewMatchQuery(query)
	match.SetField("text")

	conjuncts := []blevequery.Query{match}
	if filter.Source != "" {
		term := bleve.NewTermQuery(filter.Source)
		term.SetField("source")
		conjuncts = append(conjuncts, term)
	}
	if filter.System != "" {
		term := bleve.NewTermQuery(filter.System)
		term.SetField("primary_system")
		conjuncts = append(conjuncts, term)
	}
	var q blevequery.Query = match
	if len(conjuncts) > 1 {
		q = bleve.NewConjunctionQuery(conjuncts...)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	out := make([]*Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, &Result{ID: id, Score: hit.Score})
	}
	return out, nil
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
