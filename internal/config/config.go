// Package config provides configuration loading and structs for the vaidya
// engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Safety    SafetyConfig    `yaml:"safety"`
	Dialogue  DialogueConfig  `yaml:"dialogue"`
	Generator GeneratorConfig `yaml:"generator"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CorpusConfig holds paths to the corpus-build artifacts the engine
// consumes. Both are produced externally and read-only at runtime.
type CorpusConfig struct {
	MetadataPath    string `yaml:"metadata_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "onnx", "remote", or "mock".
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	APIKey     string `yaml:"api_key"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrievalConfig holds hybrid retrieval and reranking settings.
type RetrievalConfig struct {
	RetrievalCount    int     `yaml:"retrieval_count"`
	RerankCount       int     `yaml:"rerank_count"`
	DefaultCount      int     `yaml:"default_count"`
	DenseCandidates   int     `yaml:"dense_candidates"`
	LexicalCandidates int     `yaml:"lexical_candidates"`
	RRFK              float64 `yaml:"rrf_k"`
	DenseWeight       float64 `yaml:"dense_weight"`
	LexicalWeight     float64 `yaml:"lexical_weight"`
	HybridEnabled     *bool   `yaml:"hybrid_enabled"`
	RerankerModel     string  `yaml:"reranker_model"`
	RerankerPath      string  `yaml:"reranker_path"`
}

// Hybrid reports whether lexical retrieval participates; defaults to true
// when unset.
func (r *RetrievalConfig) Hybrid() bool {
	if r.HybridEnabled != nil {
		return *r.HybridEnabled
	}
	return true
}

// SafetyConfig holds risk gate settings.
type SafetyConfig struct {
	CatalogPath   string  `yaml:"catalog_path"`
	RiskThreshold float64 `yaml:"risk_threshold"`
}

// DialogueConfig holds the state machine budgets.
type DialogueConfig struct {
	MinGatheringQuestions   int `yaml:"min_gathering_questions"`
	ExtraGatheringQuestions int `yaml:"extra_gathering_questions"`
	MaxDiagnosisAttempts    int `yaml:"max_diagnosis_attempts"`
	MaxValidationRetries    int `yaml:"max_validation_retries"`
	MaxTurns                int `yaml:"max_turns"`
}

// GeneratorConfig holds LLM endpoint settings.
type GeneratorConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Load reads and parses the config file at path, expands paths, and applies
// defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Corpus.MetadataPath = expandPath(cfg.Corpus.MetadataPath, configDir)
	cfg.Corpus.VectorIndexPath = expandPath(cfg.Corpus.VectorIndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	if cfg.Retrieval.RerankerPath != "" {
		cfg.Retrieval.RerankerPath = expandPath(cfg.Retrieval.RerankerPath, configDir)
	}
	if cfg.Safety.CatalogPath != "" {
		cfg.Safety.CatalogPath = expandPath(cfg.Safety.CatalogPath, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
