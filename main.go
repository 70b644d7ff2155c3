package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/careerloom/profile-engine/pkg/config"
	"github.com/careerloom/profile-engine/pkg/database"
	"github.com/careerloom/profile-engine/pkg/handlers"
	"github.com/careerloom/profile-engine/pkg/llm"
	"github.com/careerloom/profile-engine/pkg/middleware"
	"github.com/careerloom/profile-engine/pkg/repositories"
	"github.com/careerloom/profile-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Host),
		zap.String("matcher_provider", cfg.Matcher.Provider),
		zap.String("matcher_model", cfg.Matcher.Model))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	matcherClient, err := llm.NewClient(&llm.Config{
		Provider: cfg.Matcher.Provider,
		Endpoint: cfg.Matcher.Endpoint,
		Model:    cfg.Matcher.Model,
		APIKey:   cfg.Matcher.APIKey,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create matcher client", zap.Error(err))
	}

	repo := repositories.NewProfileRepository(db)
	matcher := services.NewLLMMatcher(matcherClient, cfg.Matcher.Temperature, logger)
	consolidation := services.NewConsolidationService(repo, matcher, cfg.Consolidation.MaxConflictRetries, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewProfileHandler(consolidation, logger).RegisterRoutes(mux)
	handlers.NewValidationHandler(logger).RegisterRoutes(mux)

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting profile-engine", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.URL())
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()

	return database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger)
}
