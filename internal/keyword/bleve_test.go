package keyword

import (
	"context"
	"testing"

	"github.com/vedanta-labs/vaidya/internal/models"
)

func buildTestIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex([]*models.ChunkRecord{
		{ID: 1, Text: "Vata imbalance manifests as anxiety and insomnia.", Source: "charaka_samhita", PrimarySystem: "nervous"},
		{ID: 2, Text: "Pitta aggravation causes heartburn and irritability.", Source: "charaka_samhita", PrimarySystem: "digestive"},
		{ID: 3, Text: "Kapha excess leads to congestion and lethargy.", Source: "sushruta_samhita", PrimarySystem: "respiratory"},
		{ID: 4, Text: "Anxiety responds to warm oil massage and routine.", Source: "sushruta_samhita", PrimarySystem: "nervous"},
	})
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBleveIndex_Search(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search(context.Background(), "anxiety", 10, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	found := map[int64]bool{}
	for _, r := range results {
		found[r.ID] = true
		if r.Score <= 0 {
			t.Errorf("result %d has score %v, want > 0", r.ID, r.Score)
		}
	}
	if !found[1] || !found[4] {
		t.Errorf("results = %v, want ids 1 and 4", found)
	}
}

func TestBleveIndex_SearchCaseInsensitive(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search(context.Background(), "HEARTBURN", 10, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != 2 {
		t.Errorf("results = %v, want only id 2", results)
	}
}

func TestBleveIndex_SourceFilter(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search(context.Background(), "anxiety", 10, Filter{Source: "sushruta_samhita"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != 4 {
		t.Errorf("results = %v, want only id 4", results)
	}
}

func TestBleveIndex_SystemFilter(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search(context.Background(), "anxiety", 10, Filter{System: "nervous"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	// Both filters conjoin.
	results, err = idx.Search(context.Background(), "anxiety", 10,
		Filter{Source: "charaka_samhita", System: "nervous"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != 1 {
		t.Errorf("results = %v, want only id 1", results)
	}

	// A system no chunk carries matches nothing.
	results, err = idx.Search(context.Background(), "anxiety", 10, Filter{System: "urinary"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestBleveIndex_SearchLimit(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search(context.Background(), "anxiety", 1, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want limit of 1", len(results))
	}
}

func TestBleveIndex_NoMatches(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search(context.Background(), "zymurgy", 10, Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestBleveIndex_DocCount(t *testing.T) {
	idx := buildTestIndex(t)
	n, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if n != 4 {
		t.Errorf("DocCount = %d, want 4", n)
	}

	empty, err := NewBleveIndex(nil)
	if err != nil {
		t.Fatalf("NewBleveIndex(nil): %v", err)
	}
	defer empty.Close()
	n, _ = empty.DocCount()
	if n != 0 {
		t.Errorf("empty DocCount = %d, want 0", n)
	}
}
