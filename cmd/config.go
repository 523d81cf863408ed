package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/spigell/assessment-recommender/internal/validation"
)

type Config struct {
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Query      QueryConfig      `mapstructure:"query"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Embedding  EmbeddingConfig  `mapstructure:"embedding"`
	Ranking    RankingConfig    `mapstructure:"ranking"`
	Filters    FiltersConfig    `mapstructure:"filters"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Server     ServerConfig     `mapstructure:"server"`
	JobPage    JobPageConfig    `mapstructure:"job-page"`
}

type CatalogConfig struct {
	Path    string `mapstructure:"path" validate:"required"`
	Format  string `mapstructure:"format" validate:"omitempty,oneof=csv json"`
	BaseURL string `mapstructure:"base-url" validate:"omitempty,url"`
}

type QueryConfig struct {
	DescriptionThreshold int `mapstructure:"description-threshold" validate:"gte=0"`
}

type ScoringConfig struct {
	Strategy      string  `mapstructure:"strategy" validate:"oneof=lexical dense hybrid"`
	NameWeight    float64 `mapstructure:"name-weight" validate:"gte=0"`
	LexicalWeight float64 `mapstructure:"lexical-weight" validate:"gte=0"`
	DenseWeight   float64 `mapstructure:"dense-weight" validate:"gte=0"`
}

type EmbeddingConfig struct {
	Provider         string        `mapstructure:"provider" validate:"oneof=hashing gemini"`
	Model            string        `mapstructure:"model"`
	Dimensions       int           `mapstructure:"dimensions" validate:"gte=0"`
	APIKey           string        `mapstructure:"api-key"`
	APIKeyFile       string        `mapstructure:"api-key-file"`
	MaxRetries       int           `mapstructure:"max-retries" validate:"gte=0"`
	CacheSize        int           `mapstructure:"cache-size" validate:"gte=0"`
	FailureThreshold uint32        `mapstructure:"failure-threshold"`
	OpenTimeout      time.Duration `mapstructure:"open-timeout"`
}

type RankingConfig struct {
	Limit   int `mapstructure:"limit" validate:"min=1,max=10"`
	Workers int `mapstructure:"workers" validate:"gte=0"`
}

type FiltersConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Disabled        []string `mapstructure:"disabled" validate:"dive,oneof=max_duration remote adaptive"`
	MaxDuration     int      `mapstructure:"max-duration" validate:"gte=0"`
	RequireRemote   bool     `mapstructure:"require-remote"`
	RequireAdaptive bool     `mapstructure:"require-adaptive"`
	UseQueryHints   bool     `mapstructure:"use-query-hints"`
}

type EvaluationConfig struct {
	K            int    `mapstructure:"k" validate:"min=1,max=10"`
	Workers      int    `mapstructure:"workers" validate:"gte=0"`
	Cases        string `mapstructure:"cases"`
	HistoryDB    string `mapstructure:"history-db"`
	ApplyFilters bool   `mapstructure:"apply-filters"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr" validate:"required"`
	RateLimit      int           `mapstructure:"rate-limit" validate:"gte=0"`
	MaxBodyBytes   int64         `mapstructure:"max-body-bytes" validate:"gte=0"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	ReadTimeout    time.Duration `mapstructure:"read-timeout"`
	WriteTimeout   time.Duration `mapstructure:"write-timeout"`
	CORSOrigins    []string      `mapstructure:"cors-origins"`
}

type JobPageConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	UserAgent string        `mapstructure:"user-agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.path", "data/catalog.csv")
	v.SetDefault("catalog.format", "")
	v.SetDefault("catalog.base-url", "https://www.shl.com")

	v.SetDefault("query.description-threshold", 300)

	v.SetDefault("scoring.strategy", "lexical")
	v.SetDefault("scoring.name-weight", 2.0)
	v.SetDefault("scoring.lexical-weight", 0.5)
	v.SetDefault("scoring.dense-weight", 0.5)

	v.SetDefault("embedding.provider", "hashing")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.api-key", "")
	v.SetDefault("embedding.api-key-file", "")
	v.SetDefault("embedding.max-retries", 3)
	v.SetDefault("embedding.cache-size", 4096)
	v.SetDefault("embedding.failure-threshold", 5)
	v.SetDefault("embedding.open-timeout", "30s")

	v.SetDefault("ranking.limit", 10)
	v.SetDefault("ranking.workers", 0)

	v.SetDefault("filters.enabled", true)
	v.SetDefault("filters.disabled", []string{})
	v.SetDefault("filters.max-duration", 0)
	v.SetDefault("filters.require-remote", false)
	v.SetDefault("filters.require-adaptive", false)
	v.SetDefault("filters.use-query-hints", true)

	v.SetDefault("evaluation.k", 3)
	v.SetDefault("evaluation.workers", 4)
	v.SetDefault("evaluation.cases", "data/test_cases.csv")
	v.SetDefault("evaluation.history-db", "data/history.db")
	v.SetDefault("evaluation.apply-filters", false)

	v.SetDefault("server.addr", ":10000")
	v.SetDefault("server.rate-limit", 60)
	v.SetDefault("server.max-body-bytes", 1<<20)
	v.SetDefault("server.request-timeout", "30s")
	v.SetDefault("server.read-timeout", "15s")
	v.SetDefault("server.write-timeout", "45s")
	v.SetDefault("server.cors-origins", []string{})

	v.SetDefault("job-page.enabled", false)
	v.SetDefault("job-page.user-agent", "")
	v.SetDefault("job-page.timeout", "10s")
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := validation.Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
