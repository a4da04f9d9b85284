package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestRemoteEmbedder_OllamaShape(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Prompt == "" || req.Input == "" {
			t.Errorf("request should carry both prompt and input: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string][]float32{"embedding": {3, 4}})
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(RemoteConfig{BaseURL: srv.URL, Dimensions: 2})
	vec, err := e.Embed(context.Background(), "vata")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	// Returned vectors are L2-normalized.
	if math.Abs(float64(vec[0])-0.6) > 1e-6 || math.Abs(float64(vec[1])-0.8) > 1e-6 {
		t.Errorf("vec = %v, want normalized [0.6 0.8]", vec)
	}

	// The second call for the same text hits the cache.
	if _, err := e.Embed(context.Background(), "vata"); err != nil {
		t.Fatalf("Embed (cached): %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("endpoint called %d times, want 1 (cache)", calls)
	}
}

func TestRemoteEmbedder_OpenAIShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header = %q", got)
		}
		_, _ = w.Write([]byte(`{"data": [{"embedding": [0, 1]}]}`))
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(RemoteConfig{BaseURL: srv.URL, APIKey: "sk-test", Dimensions: 2})
	vec, err := e.Embed(context.Background(), "pitta")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vec[0] != 0 || vec[1] != 1 {
		t.Errorf("vec = %v", vec)
	}
}

func TestRemoteEmbedder_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string][]float32{"embedding": {1, 0}})
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(RemoteConfig{BaseURL: srv.URL, Dimensions: 2})
	vec, err := e.Embed(context.Background(), "kapha")
	if err != nil {
		t.Fatalf("Embed after retry: %v", err)
	}
	if vec[0] != 1 {
		t.Errorf("vec = %v", vec)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRemoteEmbedder_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(RemoteConfig{BaseURL: srv.URL, Dimensions: 2})
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 4xx)", calls)
	}
}

func TestRemoteEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][]float32{"embedding": {1, 2, 3}})
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(RemoteConfig{BaseURL: srv.URL, Dimensions: 2})
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestDecodeEmbedding(t *testing.T) {
	if _, err := decodeEmbedding([]byte(`{"nothing": true}`)); err == nil {
		t.Error("expected error for payload without embedding")
	}
	vec, err := decodeEmbedding([]byte(`{"embedding": [1, 2]}`))
	if err != nil || len(vec) != 2 {
		t.Errorf("ollama shape: (%v, %v)", vec, err)
	}
	vec, err = decodeEmbedding([]byte(`{"data": [{"embedding": [5]}]}`))
	if err != nil || vec[0] != 5 {
		t.Errorf("openai shape: (%v, %v)", vec, err)
	}
}

func TestSimpleTokenizer_Pair(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, mask, types := tok.TokenizePair("vata dosha", "governs movement", 16)

	if len(ids) != 16 || len(mask) != 16 || len(types) != 16 {
		t.Fatalf("lengths = %d %d %d, want 16", len(ids), len(mask), len(types))
	}
	if ids[0] != clsTokenID {
		t.Errorf("first token = %d, want CLS", ids[0])
	}
	// Segment A tokens carry type 0, segment B type 1.
	if types[1] != 0 {
		t.Error("first segment should have type 0")
	}
	sawSegmentB := false
	for i := range types {
		if types[i] == 1 && mask[i] == 1 {
			sawSegmentB = true
		}
	}
	if !sawSegmentB {
		t.Error("second segment tokens should carry type 1")
	}
	// Padding positions are masked out.
	last := len(mask) - 1
	for mask[last] == 0 && last > 0 {
		if ids[last] != 0 {
			t.Error("padding should be zero ids")
		}
		last--
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Error("hash must be deterministic")
	}
	if HashString("abc") < 0 {
		t.Error("hash must be non-negative")
	}
}
