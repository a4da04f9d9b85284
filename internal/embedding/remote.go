package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteEmbedder calls an Ollama or OpenAI-compatible embeddings endpoint.
// It is the no-CGO alternative to the ONNX embedder.
type RemoteEmbedder struct {
	baseURL    string
	model      string
	apiKey     string
	dimensions int
	cache      *Cache
	client     *http.Client
	maxRetries int
}

// RemoteConfig configures a RemoteEmbedder.
type RemoteConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	Dimensions int
	CacheSize  int
	Timeout    time.Duration
}

// NewRemoteEmbedder creates a remote embedder. BaseURL defaults to a local
// Ollama instance.
func NewRemoteEmbedder(cfg RemoteConfig) *RemoteEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = 10000
	}
	return &RemoteEmbedder{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		dimensions: cfg.Dimensions,
		cache:      NewCache(cfg.CacheSize),
		client:     &http.Client{Timeout: cfg.Timeout},
		maxRetries: 5,
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Input  string `json:"input,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// Embed returns the normalized embedding for text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay(attempt)):
			}
		}
		vec, retryable, err := e.embedOnce(ctx, text)
		if err == nil {
			NormalizeL2(vec)
			e.cache.Set(text, vec)
			return vec, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}
	return nil, lastErr
}

func (e *RemoteEmbedder) embedOnce(ctx context.Context, text string) (vec []float32, retryable bool, err error) {
	// Prompt is the Ollama-native field; Input the OpenAI one. Sending both
	// keeps a single request shape working against either server.
	body, err := json.Marshal(embedRequest{Model: e.model, Input: text, Prompt: text})
	if err != nil {
		return nil, false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("embeddings endpoint returned %s", resp.Status)
	}
	if resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("embeddings endpoint returned %s", resp.Status)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	vec, err = decodeEmbedding(payload)
	if err != nil {
		return nil, true, err
	}
	if e.dimensions == 0 {
		e.dimensions = len(vec)
	}
	if len(vec) != e.dimensions {
		return nil, false, fmt.Errorf("embedding dimension changed: got %d, expected %d", len(vec), e.dimensions)
	}
	return vec, false, nil
}

// decodeEmbedding accepts both the Ollama-native shape {"embedding": [...]}
// and the OpenAI shape {"data": [{"embedding": [...]}]}.
func decodeEmbedding(payload []byte) ([]float32, error) {
	var ollama struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollama); err == nil && len(ollama.Embedding) > 0 {
		return ollama.Embedding, nil
	}
	var openai struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openai); err == nil && len(openai.Data) > 0 && len(openai.Data[0].Embedding) > 0 {
		return openai.Data[0].Embedding, nil
	}
	return nil, errors.New("no embedding in response")
}

// EmbedBatch calls Embed for each text.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension, or zero before the first
// successful call when unconfigured.
func (e *RemoteEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for RemoteEmbedder.
func (e *RemoteEmbedder) Close() error {
	return nil
}

func retryDelay(attempt int) time.Duration {
	base := 200 * time.Millisecond
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
