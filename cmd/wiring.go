package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/catalog"
	"github.com/spigell/assessment-recommender/internal/embed"
	"github.com/spigell/assessment-recommender/internal/engine"
	"github.com/spigell/assessment-recommender/internal/filtering"
	"github.com/spigell/assessment-recommender/internal/jobpage"
	"github.com/spigell/assessment-recommender/internal/logger"
	"github.com/spigell/assessment-recommender/internal/query"
	"github.com/spigell/assessment-recommender/internal/scoring"
	"github.com/spigell/assessment-recommender/internal/secrets"
)

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func newEmbedder(ctx context.Context, cfg EmbeddingConfig, log *zap.Logger) (embed.Embedder, error) {
	var embedder embed.Embedder

	switch cfg.Provider {
	case "", "hashing":
		embedder = embed.NewHashing(cfg.Dimensions)
	case "gemini":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "GEMINI_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set embedding.api-key-file or GEMINI_API_KEY)", err)
		}

		gemini, err := embed.NewGemini(ctx, embed.GeminiConfig{
			APIKey:           apiKey,
			Model:            cfg.Model,
			Dimensions:       cfg.Dimensions,
			MaxRetries:       cfg.MaxRetries,
			FailureThreshold: cfg.FailureThreshold,
			OpenTimeout:      cfg.OpenTimeout,
		}, log.With(zap.String("provider", "gemini")))
		if err != nil {
			return nil, err
		}
		embedder = gemini
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		embedder = embed.NewCached(embedder, cfg.CacheSize)
	}
	return embedder, nil
}

func engineConfig(cfg *Config) engine.Config {
	disabled := append([]string{}, cfg.Filters.Disabled...)
	if !cfg.Filters.Enabled {
		for _, f := range filtering.Default() {
			disabled = append(disabled, f.Name())
		}
	}

	return engine.Config{
		Scoring: scoring.Config{
			Strategy:      scoring.Strategy(cfg.Scoring.Strategy),
			NameWeight:    cfg.Scoring.NameWeight,
			LexicalWeight: cfg.Scoring.LexicalWeight,
			DenseWeight:   cfg.Scoring.DenseWeight,
		},
		Normalizer: query.Normalizer{DescriptionThreshold: cfg.Query.DescriptionThreshold},
		Filters: filtering.Config{
			MaxDuration:     cfg.Filters.MaxDuration,
			RequireRemote:   cfg.Filters.RequireRemote,
			RequireAdaptive: cfg.Filters.RequireAdaptive,
			UseQueryHints:   cfg.Filters.UseQueryHints,
		},
		DisabledFilters: disabled,
		Workers:         cfg.Ranking.Workers,
		ExpandLinks:     cfg.JobPage.Enabled,
	}
}

// newEngine builds the engine and loads the configured catalog into it.
func newEngine(ctx context.Context, cfg *Config, log *zap.Logger) (*engine.Engine, error) {
	var embedder embed.Embedder
	if scoring.Strategy(cfg.Scoring.Strategy) != scoring.StrategyLexical {
		var err error
		if embedder, err = newEmbedder(ctx, cfg.Embedding, log); err != nil {
			return nil, fmt.Errorf("building embedder: %w", err)
		}
	}

	var opts []engine.Option
	if cfg.JobPage.Enabled {
		client := jobpage.New(log)
		if cfg.JobPage.UserAgent != "" {
			client.UserAgent = cfg.JobPage.UserAgent
		}
		if cfg.JobPage.Timeout > 0 {
			client.HTTPClient.Timeout = cfg.JobPage.Timeout
		}
		opts = append(opts, engine.WithFetcher(client))
	}

	e := engine.New(engineConfig(cfg), embedder, log, opts...)
	if _, err := reloadCatalog(ctx, e, cfg.Catalog); err != nil {
		return nil, err
	}

	statuses, err := e.Filters()
	if err != nil {
		return nil, fmt.Errorf("validating filters: %w", err)
	}
	for _, st := range statuses {
		log.Debug("constraint filter",
			zap.String("name", st.Name),
			zap.Bool("enabled", st.Enabled),
			zap.String("reason", st.Reason),
			zap.Any("details", st.Details),
		)
	}
	return e, nil
}

func reloadCatalog(ctx context.Context, e *engine.Engine, cfg CatalogConfig) (*catalog.Snapshot, error) {
	src, err := catalog.NewFileSource(cfg.Path, cfg.Format)
	if err != nil {
		return nil, err
	}
	return e.Reload(ctx, src, catalog.LoadOptions{BaseURL: cfg.BaseURL})
}
