package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/assessment-recommender/internal/engine"
	"github.com/spigell/assessment-recommender/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve recommendations over HTTP",
	Long:  "Serve recommendations over HTTP. SIGHUP reloads the catalog without dropping requests.",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the assessment-recommender server", zap.String("version", version))

	e, err := newEngine(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the engine", zap.Error(err))
	}

	go watchReload(ctx, e, config.Catalog, logger)

	srv := server.New(server.Config{
		Addr:           config.Server.Addr,
		Limit:          config.Ranking.Limit,
		RateLimit:      config.Server.RateLimit,
		MaxBodyBytes:   config.Server.MaxBodyBytes,
		RequestTimeout: config.Server.RequestTimeout,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		CORSOrigins:    config.Server.CORSOrigins,
	}, e, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("http server stopped", zap.Error(err))
	}
	logger.Info("exiting", zap.String("reason", "shutdown requested"))
}

// watchReload swaps in a fresh catalog on every SIGHUP until ctx is done.
func watchReload(ctx context.Context, e *engine.Engine, cfg CatalogConfig, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			snap, err := reloadCatalog(ctx, e, cfg)
			if err != nil {
				logger.Error("catalog reload failed, keeping the previous snapshot", zap.Error(err))
				continue
			}
			logger.Info("catalog reloaded", zap.Int("records", snap.Len()))
		}
	}
}
