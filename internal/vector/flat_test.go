package vector

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestFlatIndex_SearchRanksbyInnerProduct(t *testing.T) {
	idx, err := NewFlatIndex(3)
	if err != nil {
		t.Fatalf("NewFlatIndex: %v", err)
	}
	ids := []int64{1, 2, 3}
	vecs := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0.7071, 0.7071, 0},
	}
	if err := idx.Add(context.Background(), ids, vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}

	results, err := idx.Search(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != 1 {
		t.Errorf("top result id = %d, want 1", results[0].ID)
	}
	if results[1].ID != 3 {
		t.Errorf("second result id = %d, want 3", results[1].ID)
	}
	if math.Abs(results[0].Score-1.0) > 1e-6 {
		t.Errorf("top score = %f, want 1.0", results[0].Score)
	}
}

func TestFlatIndex_SearchTieBrokenByID(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	err := idx.Add(context.Background(),
		[]int64{9, 4},
		[][]float32{{1, 0}, {1, 0}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	results, err := idx.Search(context.Background(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].ID != 4 || results[1].ID != 9 {
		t.Errorf("tie order = [%d %d], want [4 9]", results[0].ID, results[1].ID)
	}
}

func TestFlatIndex_SearchEdgeCases(t *testing.T) {
	idx, _ := NewFlatIndex(2)

	// Empty index returns nothing.
	results, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("empty index: got %d results, want 0", len(results))
	}

	// Dimension mismatch errors.
	if _, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5); err == nil {
		t.Error("expected dimension mismatch error")
	}

	// k larger than index size is clamped.
	_ = idx.Add(context.Background(), []int64{1}, [][]float32{{0, 1}})
	results, err = idx.Search(context.Background(), []float32{0, 1}, 100)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestFlatIndex_AddValidation(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	if err := idx.Add(context.Background(), []int64{1}, nil); err == nil {
		t.Error("expected length mismatch error")
	}
	if err := idx.Add(context.Background(), []int64{1}, [][]float32{{1, 2, 3}}); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestFlatIndex_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	src, _ := NewFlatIndex(3)
	ids := []int64{10, 20, 30}
	vecs := [][]float32{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
		{-0.7, 0.8, -0.9},
	}
	if err := src.Add(context.Background(), ids, vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := src.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst, _ := NewFlatIndex(3)
	if err := dst.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if dst.Size() != 3 {
		t.Fatalf("loaded size = %d, want 3", dst.Size())
	}
	gotIDs := dst.IDs()
	for i, want := range ids {
		if gotIDs[i] != want {
			t.Errorf("id[%d] = %d, want %d", i, gotIDs[i], want)
		}
	}

	// Loaded vectors must score identically to the originals.
	query := []float32{0.4, 0.5, 0.6}
	orig, _ := src.Search(context.Background(), query, 3)
	loaded, _ := dst.Search(context.Background(), query, 3)
	for i := range orig {
		if orig[i].ID != loaded[i].ID || math.Abs(orig[i].Score-loaded[i].Score) > 1e-6 {
			t.Errorf("result %d: loaded (%d, %f) differs from original (%d, %f)",
				i, loaded[i].ID, loaded[i].Score, orig[i].ID, orig[i].Score)
		}
	}
}

func TestFlatIndex_LoadTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	src, _ := NewFlatIndex(3)
	ids := []int64{1, 2}
	vecs := [][]float32{{1, 0, 0}, {0, 1, 0}}
	if err := src.Add(context.Background(), ids, vecs); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := src.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Cut the file mid-way through the last vector's bytes.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if err := os.Truncate(path, info.Size()-5); err != nil {
		t.Fatalf("Truncate: %v", err)
	}

	dst, _ := NewFlatIndex(3)
	if err := dst.Load(path); err == nil {
		t.Error("expected error loading a truncated index file")
	}
}

func TestFlatIndex_LoadDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")

	src, _ := NewFlatIndex(2)
	_ = src.Add(context.Background(), []int64{1}, [][]float32{{1, 0}})
	if err := src.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	dst, _ := NewFlatIndex(4)
	if err := dst.Load(path); err == nil {
		t.Error("expected dimension mismatch error on Load")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite clamped to zero", []float32{1, 0}, []float32{-1, 0}, 0.0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0.0},
		{"empty", nil, nil, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestL2Norm(t *testing.T) {
	if got := L2Norm([]float32{3, 4}); math.Abs(got-5) > 1e-9 {
		t.Errorf("L2Norm(3,4) = %f, want 5", got)
	}
	if got := L2Norm(nil); got != 0 {
		t.Errorf("L2Norm(nil) = %f, want 0", got)
	}
}
