package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/kvxlabs/vanguard/internal/adapter/ai"
	"github.com/kvxlabs/vanguard/internal/adapter/source"
	"github.com/kvxlabs/vanguard/internal/adapter/store"
	"github.com/kvxlabs/vanguard/internal/handler"
	"github.com/kvxlabs/vanguard/internal/middleware"
	"github.com/kvxlabs/vanguard/internal/service"
	"github.com/kvxlabs/vanguard/pkg/config"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting Vanguard AI",
		"port", cfg.Port,
		"model", cfg.AnthropicModel,
		"max_files", cfg.MaxFilesPerScan,
		"concurrency", cfg.ScanConcurrency,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	// ── Adapters ─────────────────────────────────────────────────────────
	githubSource := source.NewGitHubProvider(cfg.GitHubToken)
	analyzer := ai.NewAnthropicAnalyzer(ai.AnthropicConfig{
		BaseURL: cfg.AnthropicBaseURL,
		APIKey:  cfg.AnthropicAPIKey,
		Model:   cfg.AnthropicModel,
	}, cfg.MaxContentChars)

	// ── Services ─────────────────────────────────────────────────────────
	authService := service.NewAuthService(pgStore, cfg.SessionTTL)
	scanService := service.NewScanService(pgStore, githubSource, analyzer, nil, cfg.MaxFilesPerScan, cfg.ScanConcurrency)

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
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: true,
	}))

	// ── Public Routes ────────────────────────────────────────────────────
	authHandler := handler.NewAuthHandler(authService, pgStore)
	authHandler.RegisterPublic(app)

	// Health check
	app.Get("/api/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Protected Routes ─────────────────────────────────────────────────
	api := app.Group("/api", middleware.SessionMiddleware(pgStore))

	authHandler.RegisterProtected(api)

	repoHandler := handler.NewRepoHandler(pgStore, scanService)
	repoHandler.Register(api)

	scanHandler := handler.NewScanHandler(pgStore)
	scanHandler.Register(api)

	statsHandler := handler.NewStatsHandler(pgStore)
	statsHandler.Register(api)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
