package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Corpus.MetadataPath == "" {
		cfg.Corpus.MetadataPath = "/usr/local/var/vaidya/data/corpus/chunks.db"
	}
	if cfg.Corpus.VectorIndexPath == "" {
		cfg.Corpus.VectorIndexPath = "/usr/local/var/vaidya/data/corpus/vectors.idx"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "remote"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "http://localhost:11434"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Retrieval.RetrievalCount == 0 {
		cfg.Retrieval.RetrievalCount = 20
	}
	if cfg.Retrieval.RerankCount == 0 {
		cfg.Retrieval.RerankCount = 8
	}
	if cfg.Retrieval.DefaultCount == 0 {
		cfg.Retrieval.DefaultCount = 12
	}
	if cfg.Retrieval.DenseCandidates == 0 {
		cfg.Retrieval.DenseCandidates = 80
	}
	if cfg.Retrieval.LexicalCandidates == 0 {
		cfg.Retrieval.LexicalCandidates = 80
	}
	if cfg.Retrieval.RRFK == 0 {
		cfg.Retrieval.RRFK = 60
	}
	if cfg.Retrieval.DenseWeight == 0 {
		cfg.Retrieval.DenseWeight = 1.0
	}
	if cfg.Retrieval.LexicalWeight == 0 {
		cfg.Retrieval.LexicalWeight = 1.0
	}
	if cfg.Retrieval.RerankerModel == "" {
		cfg.Retrieval.RerankerModel = "cross-encoder/ms-marco-MiniLM-L-6-v2"
	}
	if cfg.Safety.RiskThreshold == 0 {
		cfg.Safety.RiskThreshold = 0.65
	}
	if cfg.Dialogue.MinGatheringQuestions == 0 {
		cfg.Dialogue.MinGatheringQuestions = 15
	}
	if cfg.Dialogue.ExtraGatheringQuestions == 0 {
		cfg.Dialogue.ExtraGatheringQuestions = 5
	}
	if cfg.Dialogue.MaxDiagnosisAttempts == 0 {
		cfg.Dialogue.MaxDiagnosisAttempts = 2
	}
	if cfg.Dialogue.MaxValidationRetries == 0 {
		cfg.Dialogue.MaxValidationRetries = 3
	}
	if cfg.Dialogue.MaxTurns == 0 {
		cfg.Dialogue.MaxTurns = 50
	}
	if cfg.Generator.BaseURL == "" {
		cfg.Generator.BaseURL = "http://localhost:11434"
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "llama3.2"
	}
	if cfg.Generator.Temperature == 0 {
		cfg.Generator.Temperature = 0.1
	}
	if cfg.Generator.TimeoutSeconds == 0 {
		cfg.Generator.TimeoutSeconds = 120
	}
}
