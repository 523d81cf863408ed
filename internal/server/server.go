// Package server exposes the recommendation engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/rank"
)

const (
	defaultAddr         = ":8080"
	defaultMaxBodyBytes = 1 << 20
	defaultTimeout      = 30 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Recommender produces filtered recommendations for free text.
type Recommender interface {
	Recommend(ctx context.Context, text string, limit int) (*rank.Result, error)
}

// Config holds the HTTP settings. Zero values fall back to defaults.
type Config struct {
	Addr string
	// Limit is the number of recommendations returned per request.
	Limit int
	// RateLimit is the number of requests allowed per client IP and RateWindow; zero disables it.
	RateLimit      int
	RateWindow     time.Duration
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// CORSOrigins lists browser origins allowed to call the API; empty disables CORS.
	CORSOrigins []string
}

type Server struct {
	cfg    Config
	engine Recommender
	logger *zap.Logger
	router chi.Router
}

// New builds the router. engine must not be nil.
func New(cfg Config, engine Recommender, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.Limit <= 0 || cfg.Limit > rank.MaxLimit {
		cfg.Limit = rank.MaxLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Minute
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultTimeout
	}

	s := &Server{cfg: cfg, engine: engine, logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(s.logger))
	r.Use(chimiddleware.Recoverer)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RateLimit, s.cfg.RateWindow))
		r.Use(chimiddleware.RequestSize(s.cfg.MaxBodyBytes))
		r.Use(chimiddleware.Timeout(s.cfg.RequestTimeout))
		r.Post("/recommend", s.recommend)
	})

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
