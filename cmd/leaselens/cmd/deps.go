package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Aman-CERP/leaselens/internal/chunk"
	"github.com/Aman-CERP/leaselens/internal/config"
	"github.com/Aman-CERP/leaselens/internal/embed"
	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
	"github.com/Aman-CERP/leaselens/internal/generate"
	"github.com/Aman-CERP/leaselens/internal/index"
	"github.com/Aman-CERP/leaselens/internal/provider"
	"github.com/Aman-CERP/leaselens/internal/search"
	"github.com/Aman-CERP/leaselens/internal/session"
	"github.com/Aman-CERP/leaselens/internal/store"
	"github.com/Aman-CERP/leaselens/internal/telemetry"
)

// loadConfig resolves the effective configuration for a command: --config
// when given, otherwise defaults, user and project config and environment.
// --offline swaps in the local providers.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cwd, werr := os.Getwd()
		if werr != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", werr)
		}
		cfg, err = config.Load(cwd)
	}
	if err != nil {
		return nil, err
	}
	if offline {
		cfg.UseOffline()
	}
	return cfg, nil
}

// sessionConfig maps configuration onto session settings.
func sessionConfig(cfg *config.Config) session.Config {
	bm25 := store.DefaultBM25Config()
	bm25.K1 = cfg.Retrieval.BM25K1
	bm25.B = cfg.Retrieval.BM25B
	if cfg.Retrieval.StopWords {
		bm25.StopWords = store.DefaultEnglishStopWords
	}

	build := index.DefaultBuildConfig()
	build.LexicalBackend = cfg.Retrieval.LexicalBackend
	build.SemanticBackend = cfg.Retrieval.SemanticBackend
	build.BM25 = bm25
	build.Batch = embed.BatchOptions{
		BatchSize:   cfg.Embeddings.BatchSize,
		Concurrency: cfg.Embeddings.Concurrency,
	}

	return session.Config{
		Chunking: chunk.Options{Size: cfg.Chunking.Size, Overlap: cfg.Chunking.Overlap},
		Build:    build,
		K:        cfg.Retrieval.K,
		TopN:     cfg.Retrieval.TopN,
		Weights: search.Weights{
			Lexical:  cfg.Retrieval.LexicalWeight,
			Semantic: cfg.Retrieval.SemanticWeight,
		},
		RRFConstant:       cfg.Retrieval.RRFConstant,
		MaxSentences:      cfg.Generation.MaxSentences,
		HistoryLimit:      cfg.Session.HistoryLimit,
		ProcessingTimeout: cfg.Session.ProcessingTimeout,
		GenerationTimeout: cfg.Generation.Timeout,
		MaxDocumentBytes:  cfg.MaxUploadBytes(),
	}
}

// providerConfig is the HTTP client policy shared by both providers.
func providerConfig(cfg *config.Config) provider.Config {
	retry := lenserrors.DefaultRetryConfig()
	retry.MaxRetries = cfg.Providers.MaxRetries
	retry.InitialDelay = cfg.Providers.InitialBackoff
	retry.MaxDelay = cfg.Providers.MaxBackoff

	return provider.Config{
		RequestsPerSecond: cfg.Providers.RequestsPerSecond,
		Burst:             cfg.Providers.Burst,
		Retry:             retry,
		CircuitFailures:   cfg.Providers.CircuitFailures,
		CircuitReset:      cfg.Providers.CircuitReset,
	}
}

// newDeps builds the embedder and generator described by cfg. The caller
// closes them with closeDeps.
func newDeps(cfg *config.Config, metrics *telemetry.AskMetrics) (session.Deps, error) {
	embedClient := providerConfig(cfg)
	embedClient.Timeout = cfg.Embeddings.Timeout
	embedder, err := embed.NewEmbedder(embed.Options{
		Provider:  embed.ProviderType(cfg.Embeddings.Provider),
		Model:     cfg.Embeddings.Model,
		BaseURL:   cfg.Embeddings.BaseURL,
		APIKey:    cfg.APIKey,
		CacheSize: cfg.Embeddings.CacheSize,
		Client:    embedClient,
	})
	if err != nil {
		return session.Deps{}, err
	}

	genClient := providerConfig(cfg)
	genClient.Timeout = cfg.Generation.Timeout
	generator, err := generate.NewGenerator(generate.Options{
		Provider:    generate.ProviderType(cfg.Generation.Provider),
		Model:       cfg.Generation.Model,
		BaseURL:     cfg.Generation.BaseURL,
		APIKey:      cfg.APIKey,
		Temperature: cfg.Generation.Temperature,
		Client:      genClient,
	})
	if err != nil {
		_ = embedder.Close()
		return session.Deps{}, err
	}

	return session.Deps{Embedder: embedder, Generator: generator, Metrics: metrics}, nil
}

func closeDeps(deps session.Deps) error {
	return errors.Join(deps.Embedder.Close(), deps.Generator.Close())
}
