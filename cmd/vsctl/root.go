package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/arturoeanton/vietstart-api/internal/adapter/ai"
	"github.com/arturoeanton/vietstart-api/internal/adapter/store"
	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/service"
	"github.com/arturoeanton/vietstart-api/pkg/config"
)

const app = "vsctl"

// Actual version can be specified in build command.
var version = "unknown"

func newRootCmd() *cobra.Command {
	var debug, jsonLogs bool

	root := &cobra.Command{
		Use:          app,
		Short:        "vsctl operates the VietStart matching backend: schema, embeddings, rankings and dev tokens",
		SilenceUsage: true,
		Version:      version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			_ = godotenv.Load() // silently ignore if .env doesn't exist

			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			opts := &slog.HandlerOptions{Level: level}
			var h slog.Handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
			if jsonLogs {
				h = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
			}
			slog.SetDefault(slog.New(h))
		},
	}

	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolVarP(&jsonLogs, "json", "j", false, "json format for logging")

	root.AddCommand(
		newMigrateCmd(),
		newReembedCmd(),
		newRankCmd(),
		newTokenCmd(),
	)
	return root
}

// backend is the wiring shared by commands that touch the database.
type backend struct {
	cfg        *config.Config
	store      *store.PostgresStore
	embeddings *service.EmbeddingService
	matching   *service.MatchingService
}

func openStore(ctx context.Context) (*config.Config, *store.PostgresStore, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pg, nil
}

func openBackend(ctx context.Context) (*backend, error) {
	cfg, pg, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := ai.NewProvider(ctx, cfg)
	if err != nil {
		pg.Close()
		return nil, err
	}

	embeddings := service.NewEmbeddingService(provider, pg, service.EmbeddingConfig{
		Timeout: cfg.EmbedTimeout,
		Workers: cfg.MatchWorkers,
	}, nil)
	matching := service.NewMatchingService(pg, embeddings, service.MatchingConfig{
		Weights: domain.Weights{
			Skills:   cfg.MatchWeightSkills,
			Roles:    cfg.MatchWeightRoles,
			Category: cfg.MatchWeightCategory,
		},
		Workers:      cfg.MatchWorkers,
		BlendedLimit: cfg.MatchBlendedLimit,
		GroupedLimit: cfg.MatchGroupedLimit,
		MaxLimit:     cfg.MatchMaxLimit,
	}, nil)

	return &backend{cfg: cfg, store: pg, embeddings: embeddings, matching: matching}, nil
}

func (b *backend) Close() {
	if err := b.store.Close(); err != nil {
		slog.Warn("closing database", "error", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
