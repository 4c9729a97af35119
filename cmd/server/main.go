package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/arturoeanton/vietstart-api/internal/adapter/ai"
	"github.com/arturoeanton/vietstart-api/internal/adapter/store"
	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/handler"
	"github.com/arturoeanton/vietstart-api/internal/mcp"
	"github.com/arturoeanton/vietstart-api/internal/metrics"
	"github.com/arturoeanton/vietstart-api/internal/middleware"
	"github.com/arturoeanton/vietstart-api/internal/observability"
	"github.com/arturoeanton/vietstart-api/internal/service"
	"github.com/arturoeanton/vietstart-api/pkg/config"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("🚀 Starting VietStart API",
		"port", cfg.Port,
		"embed_provider", cfg.EmbedProvider,
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Tracing ──────────────────────────────────────────────────────────
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "vietstart-api",
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.OTLPSampleRate,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pgStore.Close()

	if err := pgStore.Migrate(ctx); err != nil {
		return err
	}

	// ── Adapters ─────────────────────────────────────────────────────────
	provider, err := ai.NewProvider(ctx, cfg)
	if err != nil {
		return err
	}

	var m *metrics.Manager
	if cfg.MetricsEnabled {
		m = metrics.NewManager()
	}

	// ── Services ─────────────────────────────────────────────────────────
	embeddingService := service.NewEmbeddingService(provider, pgStore, service.EmbeddingConfig{
		Timeout: cfg.EmbedTimeout,
		Workers: cfg.MatchWorkers,
	}, m)
	matchingService := service.NewMatchingService(pgStore, embeddingService, service.MatchingConfig{
		Weights: domain.Weights{
			Skills:   cfg.MatchWeightSkills,
			Roles:    cfg.MatchWeightRoles,
			Category: cfg.MatchWeightCategory,
		},
		Workers:      cfg.MatchWorkers,
		BlendedLimit: cfg.MatchBlendedLimit,
		GroupedLimit: cfg.MatchGroupedLimit,
		MaxLimit:     cfg.MatchMaxLimit,
	}, m)
	recruitmentService := service.NewRecruitmentService(pgStore, pgStore, pgStore, m)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))
	if m != nil {
		app.Use(middleware.MetricsMiddleware(m))
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	// Audit middleware (logs all requests)
	app.Use(middleware.AuditMiddleware(pgStore))

	// ── Public Routes ────────────────────────────────────────────────────
	handler.NewHealthHandler(cfg.AppName, version, provider.Name(), pgStore).Register(app.Group("/api/v1"))

	// ── Protected Routes ─────────────────────────────────────────────────
	jwtConfig := middleware.JWTConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		ExpiresIn: time.Duration(cfg.JWTExpiration) * time.Hour,
	}
	jwtMiddleware := middleware.JWTMiddleware(jwtConfig)

	api := app.Group("/api/v1", jwtMiddleware)

	jobTracker := handler.NewJobTracker()

	handler.NewMatchingHandler(matchingService).Register(api)
	handler.NewEngagementHandler(recruitmentService).Register(api)
	handler.NewEmbeddingHandler(ctx, embeddingService, jobTracker, pgStore).Register(api)
	handler.NewJobsHandler(jobTracker).Register(api)
	handler.NewAuditHandler(pgStore).Register(api)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(matchingService, recruitmentService, pgStore, jwtConfig, cfg.MCPPort, version)
		go func() {
			if err := mcpServer.Start(ctx); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	listenErr := make(chan error, 1)
	go func() {
		slog.Info("🌐 Fiber listening", "port", cfg.Port)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-listenErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
