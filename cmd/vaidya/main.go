// Package main is the vaidya CLI entry point.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vedanta-labs/vaidya/internal/cli"
	"github.com/vedanta-labs/vaidya/internal/config"
	"github.com/vedanta-labs/vaidya/internal/dialogue"
	"github.com/vedanta-labs/vaidya/internal/embedding"
	"github.com/vedanta-labs/vaidya/internal/evalrag"
	"github.com/vedanta-labs/vaidya/internal/generate"
	"github.com/vedanta-labs/vaidya/internal/keyword"
	"github.com/vedanta-labs/vaidya/internal/models"
	"github.com/vedanta-labs/vaidya/internal/retrieval"
	"github.com/vedanta-labs/vaidya/internal/safety"
	"github.com/vedanta-labs/vaidya/internal/server"
	"github.com/vedanta-labs/vaidya/internal/storage"
	"github.com/vedanta-labs/vaidya/internal/vector"
	"github.com/vedanta-labs/vaidya/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/vaidya/config.yaml"

// loadConfig loads config from path. When path is the default, it first
// looks for config.yaml in the current directory (for development); if that
// exists it is used.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "chat":
		runChat()
	case "serve":
		runServe()
	case "search":
		runSearch()
	case "eval":
		runEval()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("vaidya version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: vaidya <command> [flags]

Commands:
  chat      Interactive diagnostic conversation
  serve     Run the HTTP session API
  search    One-shot retrieval against the corpus
  eval      Score retrieval and safety detection
  status    Show corpus and engine status
  version   Print version

Run 'vaidya <command> -h' for command flags.
`)
}

// components holds everything the engine needs, wired once at startup.
type components struct {
	Store     storage.ChunkStore
	Vectors   *vector.FlatIndex
	Lexical   *keyword.BleveIndex
	Embedder  embedding.Embedder
	Gate      *safety.Gate
	Retriever *retrieval.Retriever
	Reranker  *retrieval.Reranker
	Scorer    retrieval.PairScorer
	Generator generate.Generator
	Engine    *dialogue.Engine
}

// Close releases resources in reverse dependency order.
func (c *components) Close() {
	if c.Scorer != nil {
		_ = c.Scorer.Close()
	}
	if c.Lexical != nil {
		_ = c.Lexical.Close()
	}
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "onnx":
		return embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions), nil
	default:
		return embedding.NewRemoteEmbedder(embedding.RemoteConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			APIKey:     cfg.Embedding.APIKey,
			Dimensions: cfg.Embedding.Dimensions,
			CacheSize:  cfg.Embedding.CacheSize,
		}), nil
	}
}

// initializeComponents loads the corpus artifacts, verifies their
// integrity, and wires the retrieval and dialogue stack.
func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	c := &components{}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	c.Embedder = embedder

	store, err := storage.OpenSQLite(cfg.Corpus.MetadataPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("open chunk store: %w", err)
	}
	c.Store = store

	vectors, err := vector.NewFlatIndex(cfg.Embedding.Dimensions)
	if err != nil {
		c.Close()
		return nil, err
	}
	if err := vectors.Load(cfg.Corpus.VectorIndexPath); err != nil {
		c.Close()
		return nil, fmt.Errorf("load vector index: %w", err)
	}
	c.Vectors = vectors

	if err := storage.VerifyIntegrity(ctx, store, vectors.IDs()); err != nil {
		c.Close()
		return nil, err
	}

	chunks, err := store.AllChunks(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("load chunks for lexical index: %w", err)
	}
	lexical, err := keyword.NewBleveIndex(chunks)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Lexical = lexical

	stats := retrieval.NewCorpusStats(chunks)
	c.Retriever = retrieval.NewRetriever(embedder, vectors, lexical, store, stats, &cfg.Retrieval, logger)

	var scorer retrieval.PairScorer = retrieval.OverlapScorer{}
	if cfg.Retrieval.RerankerPath != "" {
		ce, err := retrieval.NewCrossEncoder(cfg.Retrieval.RerankerPath, cfg.Embedding.MaxTokens)
		if err != nil {
			logger.Warn("cross-encoder unavailable, using overlap scorer", zap.Error(err))
		} else {
			scorer = ce
		}
	}
	c.Scorer = scorer
	c.Reranker = retrieval.NewReranker(scorer, cfg.Retrieval.RerankCount)

	catalog, err := loadCatalog(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}
	gate, err := safety.NewGate(ctx, embedder, catalog, cfg.Safety.RiskThreshold, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Gate = gate

	generator := generate.NewOllamaGenerator(generate.OllamaConfig{
		BaseURL:     cfg.Generator.BaseURL,
		Model:       cfg.Generator.Model,
		Temperature: cfg.Generator.Temperature,
		Timeout:     time.Duration(cfg.Generator.TimeoutSeconds) * time.Second,
	})
	c.Generator = generator

	rewriter := generate.NewRewriter(generator, logger)
	c.Engine = dialogue.NewEngine(
		c.Retriever, c.Reranker, gate, generator, rewriter,
		cfg.Dialogue, cfg.Retrieval, logger,
	)

	logger.Info("components initialized",
		zap.Int("chunks", len(chunks)),
		zap.Int("vectors", vectors.Size()),
		zap.Int("risk_conditions", gate.ConditionCount()),
	)
	return c, nil
}

func loadCatalog(cfg *config.Config) (*safety.Catalog, error) {
	if cfg.Safety.CatalogPath != "" {
		return safety.LoadCatalog(cfg.Safety.CatalogPath)
	}
	return safety.DefaultCatalog()
}

func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, string) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug || debugFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, resolvedPath
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()

	ctx := context.Background()
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	memory := comps.Engine.NewSession()
	fmt.Println("--- Vaidya diagnostic assistant (type 'exit' to quit) ---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		result, err := comps.Engine.ProcessTurn(ctx, memory, input)
		if err != nil {
			fmt.Printf("\n[The assistant is temporarily unavailable: %v. Your last message was not recorded; please try again.]\n", err)
			continue
		}

		if result.SafetyAlert != nil {
			fmt.Println("\n*** MEDICAL SAFETY ALERT ***")
		}
		fmt.Printf("\nAI: %s\n", result.Response)

		if result.Closed {
			fmt.Println("\n--- Session Complete ---")
			break
		}
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, resolvedPath := setup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolvedPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	if cfg.Safety.CatalogPath != "" {
		watcher := safety.NewCatalogWatcher(cfg.Safety.CatalogPath, comps.Gate, logger)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("catalog watcher failed to start", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	srv := server.NewServer(comps.Engine, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	k := fs.Int("k", 0, "number of results (0 = config default)")
	source := fs.String("source", "", "restrict results to one source document")
	system := fs.String("system", "", "restrict results to one body system, or 'auto' to classify the query")
	boost := fs.Bool("boost", false, "weight rare query terms with corpus IDF")
	rerank := fs.Bool("rerank", false, "apply the reranker to the fused results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: vaidya search [flags] <query>")
		os.Exit(1)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))

	cfg, logger, _ := setup(*configPath, false)
	defer logger.Sync()

	ctx := context.Background()
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	var hits []*models.RetrievalHit
	switch {
	case *system != "":
		name := *system
		if name == "auto" {
			name = generate.ClassifySystem(ctx, comps.Generator, query)
			fmt.Printf("Classified body system: %s\n", name)
		}
		hits, err = comps.Retriever.RetrieveBySystem(ctx, query, *k, name)
	case *boost:
		hits, err = comps.Retriever.RetrieveBoosted(ctx, query, *k)
	default:
		hits, err = comps.Retriever.Retrieve(ctx, query, *k, *source)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if *rerank {
		hits, err = comps.Reranker.Rerank(ctx, query, hits)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Rerank failed: %v\n", err)
			os.Exit(1)
		}
	}

	format := cli.OutputText
	if *outputFormat == "json" {
		format = cli.OutputJSON
	}
	if err := cli.WriteHits(os.Stdout, query, hits, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runEval() {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	goldPath := fs.String("gold", "", "gold retrieval file (query -> relevant chunk ids)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, _ := setup(*configPath, false)
	defer logger.Sync()

	ctx := context.Background()
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *goldPath != "" {
		cases, err := evalrag.LoadGold(*goldPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load gold file: %v\n", err)
			os.Exit(1)
		}
		report, err := evalrag.Evaluate(ctx, comps.Retriever, cases, evalrag.DefaultKs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Evaluation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("=== RETRIEVAL EVALUATION (GOLD LABELS) ===")
		_ = enc.Encode(report)
	} else {
		fmt.Println("No gold file given; falling back to keyword-overlap evaluation.")
		results, avg, err := evalrag.EvaluateKeywords(ctx, comps.Retriever, nil, 5)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Evaluation failed: %v\n", err)
			os.Exit(1)
		}
		_ = enc.Encode(map[string]interface{}{"average_score": avg, "results": results})
	}

	safetyReport, err := evalrag.EvaluateSafety(ctx, comps.Gate, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Safety evaluation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("=== SAFETY DETECTION EVALUATION ===")
	_ = enc.Encode(safetyReport)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, _ := setup(*configPath, false)
	defer logger.Sync()

	ctx := context.Background()
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer comps.Close()

	chunkCount, err := comps.Store.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count chunks failed: %v\n", err)
		os.Exit(1)
	}
	lexCount, _ := comps.Lexical.DocCount()

	status := map[string]interface{}{
		"chunks":          chunkCount,
		"vectors":         comps.Vectors.Size(),
		"lexical_docs":    lexCount,
		"dimensions":      comps.Vectors.Dimensions(),
		"risk_conditions": comps.Gate.ConditionCount(),
		"risk_threshold":  comps.Gate.Threshold(),
	}

	if *outputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}
	fmt.Printf("chunks:           %d\n", chunkCount)
	fmt.Printf("vectors:          %d\n", comps.Vectors.Size())
	fmt.Printf("lexical_docs:     %d\n", lexCount)
	fmt.Printf("dimensions:       %d\n", comps.Vectors.Dimensions())
	fmt.Printf("risk_conditions:  %d\n", comps.Gate.ConditionCount())
	fmt.Printf("risk_threshold:   %.2f\n", comps.Gate.Threshold())
	fmt.Printf("metadata_path:    %s\n", cfg.Corpus.MetadataPath)
	fmt.Printf("vector_path:      %s\n", cfg.Corpus.VectorIndexPath)
}
