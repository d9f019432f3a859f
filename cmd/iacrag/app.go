package main

import (
	"context"
	"fmt"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"iacrag/internal/config"
	"iacrag/internal/corpus"
	"iacrag/internal/domain"
	"iacrag/internal/embedding"
	"iacrag/internal/embedding/gemini"
	"iacrag/internal/embedding/openai"
	"iacrag/internal/embedding/tfidf"
	"iacrag/internal/logging"
	"iacrag/internal/retriever"
)

// app bundles the components one command invocation works with.
type app struct {
	cfg       *config.AppConfig
	logger    *log.Logger
	docs      []domain.Document
	retriever *retriever.Retriever
}

// loadApp reads configuration and the corpus and assembles the retriever.
func loadApp(cmd *cobra.Command, opts ...retriever.Option) (*app, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if corpusDir != "" {
		cfg.Corpus.Dir = corpusDir
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger := logging.New(level, cfg.Log.Format, cmd.ErrOrStderr())

	emb, err := newEmbedder(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	resilient := embedding.Wrap(emb,
		embedding.WithPolicy(embedding.RetryPolicy{
			MaxRetries:  cfg.Embedder.MaxRetries,
			Timeout:     cfg.Embedder.Timeout(),
			BaseBackoff: cfg.Embedder.Backoff(),
			MaxBackoff:  embedding.DefaultRetryPolicy().MaxBackoff,
		}),
		embedding.WithRateLimit(cfg.Embedder.RequestsPerSecond),
		embedding.WithLogger(logger),
	)

	docs, err := corpus.Load(cfg.Corpus.Dir, corpus.Options{
		Include:      cfg.Corpus.Include,
		Exclude:      cfg.Corpus.Exclude,
		MaxFileBytes: cfg.Corpus.MaxFileBytes,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	base := []retriever.Option{
		retriever.WithLogger(logger),
		retriever.WithCacheSize(cfg.Retrieval.CacheSize),
		retriever.WithBatchSize(cfg.Embedder.BatchSize),
	}
	return &app{
		cfg:       cfg,
		logger:    logger,
		docs:      docs,
		retriever: retriever.New(resilient, append(base, opts...)...),
	}, nil
}

// index builds the index over the loaded corpus.
func (a *app) index(ctx context.Context) (domain.IndexHandle, error) {
	return a.retriever.IndexCorpus(ctx, a.docs, retriever.IndexConfig{
		ChunkSize: a.cfg.Chunker.ChunkSize,
		Overlap:   a.cfg.Chunker.Overlap,
	})
}

func newEmbedder(ctx context.Context, cfg *config.AppConfig) (domain.Embedder, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	switch cfg.Embedder.Type {
	case "tfidf", "":
		return tfidf.New(), nil
	case "openai":
		oc := cfg.Embedder.OpenAI
		client, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Model:      oc.Model,
			Dimensions: oc.Dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	case "gemini":
		gc := cfg.Embedder.Gemini
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKeyEnv: gc.APIKeyEnv,
			Model:     gc.Model,
			Dimension: gc.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini embedder init failed: %w", err)
		}
		return client, nil
	default:
		return nil, domain.NewConfigurationError("embedder.type", "unknown embedder %q", cfg.Embedder.Type)
	}
}
