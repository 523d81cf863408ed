package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/assessment-recommender/internal/utils"
)

const (
	defaultGeminiModel = "text-embedding-004"
	maxBatchSize       = 100
	retryBaseDelay     = 500 * time.Millisecond
	retryMaxDelay      = 8 * time.Second
)

type embedAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiConfig configures the Gemini embedding backend.
type GeminiConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries int
	// FailureThreshold is the number of consecutive failed calls that opens the breaker.
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// Gemini embeds texts with the Gemini API.
type Gemini struct {
	api        embedAPI
	model      string
	dims       int
	maxRetries int
	backoff    time.Duration
	breaker    *gobreaker.CircuitBreaker[[][]float32]
	logger     *zap.Logger
}

// NewGemini creates a Gemini embedder backed by the Gemini API.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGemini(client.Models, cfg, logger), nil
}

func newGemini(api embedAPI, cfg GeminiConfig, logger *zap.Logger) *Gemini {
	if logger == nil {
		logger = zap.NewNop()
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	g := &Gemini{
		api:        api,
		model:      model,
		dims:       cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
		backoff:    retryBaseDelay,
		logger:     logger.With(zap.String("embedding_model", model)),
	}

	g.breaker = gobreaker.NewCircuitBreaker[[][]float32](gobreaker.Settings{
		Name:    "gemini-embed",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("embedding circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return g
}

func (g *Gemini) ModelID() string { return "gemini/" + g.model }

// Embed sends texts in batches of at most 100, retrying rate limits and server errors.
func (g *Gemini) Embed(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := min(start+maxBatchSize, len(texts))

		batch, err := g.embedWithRetry(ctx, texts[start:end], kind)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (g *Gemini) embedWithRetry(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := utils.Backoff(attempt, g.backoff, retryMaxDelay)
			g.logger.Debug("retrying embedding request",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			if err := utils.WaitFor(ctx, delay); err != nil {
				return nil, err
			}
		}

		vectors, err := g.breaker.Execute(func() ([][]float32, error) {
			return g.embedBatch(ctx, texts, kind)
		})
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
	}

	return nil, fmt.Errorf("embedding %d texts: %w", len(texts), lastErr)
}

func (g *Gemini) embedBatch(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: text}},
		}
	}

	cfg := &genai.EmbedContentConfig{TaskType: string(kind)}
	if g.dims > 0 {
		dims := int32(g.dims)
		cfg.OutputDimensionality = &dims
	}

	resp, err := g.api.EmbedContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("gemini api returned %d embeddings for %d texts", got, len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("gemini api returned an empty embedding at position %d", i)
		}
		out[i] = Normalize(cloneVector(emb.Values))
	}
	return out, nil
}

func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		return true
	}

	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
