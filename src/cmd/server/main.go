package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/appcraft/showcase-service/src/internal/api"
	"github.com/appcraft/showcase-service/src/internal/auth"
	"github.com/appcraft/showcase-service/src/internal/config"
	"github.com/appcraft/showcase-service/src/internal/github"
	"github.com/appcraft/showcase-service/src/internal/mailer"
	"github.com/appcraft/showcase-service/src/internal/service"
	"github.com/appcraft/showcase-service/src/internal/store"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	migDir := flag.String("migrations", "./migrations", "migrations directory")
	flag.Parse()

	cfg := config.Load()

	logger, _ := zap.NewProduction()
	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if err != nil {
			logger.Fatal("failed to sync logger", zap.Error(err))
		}
	}(logger)
	sugar := logger.Sugar()

	if err := cfg.Validate(); err != nil {
		sugar.Fatalf("invalid configuration: %v", err)
	}

	db, err := connectDBWithRetry(cfg.DatabaseURL, 15, 2*time.Second, sugar)
	if err != nil {
		sugar.Fatalf("failed to connect to db: %v", err)
	}
	defer func(db *sql.DB) {
		err := db.Close()
		if err != nil {
			sugar.Fatalf("failed to close db: %v", err)
		}
	}(db)

	if err := runMigrations(cfg.DatabaseURL, *migDir, sugar); err != nil {
		sugar.Fatalf("migrations failed: %v", err)
	}
	sugar.Info("migrations applied")

	repos := store.NewRepositories(db, sugar.Desugar())
	githubClient := github.NewClient(cfg.GitHubAccessToken, sugar.Desugar())

	var notifier mailer.Notifier
	if cfg.SMTPHost != "" {
		notifier = mailer.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword,
			cfg.EmailAddress, cfg.ReviewersEmail, cfg.FrontendBaseURL, sugar.Desugar())
	} else {
		sugar.Warn("SMTP not configured, notifications disabled")
		notifier = mailer.NopNotifier{Log: sugar.Desugar()}
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		sugar.Fatalf("failed to create token service: %v", err)
	}
	oauthProvider := auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.OAuthCallbackURL)

	submissionSvc := service.NewSubmissionService(repos, githubClient, notifier, sugar.Desugar())
	userSvc := service.NewUserService(repos, sugar.Desugar())
	refreshSvc := service.NewRefreshService(repos, githubClient, sugar.Desugar())

	h := api.NewHandler(submissionSvc, userSvc, refreshSvc, oauthProvider, tokens,
		cfg.FrontendBaseURL, cfg.SchedulerToken, sugar.Desugar())

	if cfg.SchedulerToken == "" {
		sugar.Warn("SCHEDULER_TOKEN not set, the refresh endpoint is open to any caller")
	}

	r := chi.NewRouter()
	r.Use(api.RequestIDMiddleware, api.LoggerMiddleware(logger), api.Recoverer(logger))
	r.Use(auth.WithPrincipal(tokens, repos, sugar.Desugar()))
	api.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	sugar.Infof("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		sugar.Fatalf("server forced to shutdown: %v", err)
	}
	sugar.Info("server stopped")
}

func connectDBWithRetry(dsn string, attempts int, delay time.Duration, sugar *zap.SugaredLogger) (*sql.DB, error) {
	var db *sql.DB
	var err error

	for i := 0; i < attempts; i++ {
		db, err = sql.Open("postgres", dsn)
		if err == nil {
			if err = db.Ping(); err == nil {
				return db, nil
			}
		}
		sugar.Warnf("db ping error: %v (attempt %d/%d)", err, i+1, attempts)
		time.Sleep(delay)
	}
	return nil, fmt.Errorf("db connect failed: %w", err)
}

func runMigrations(dsn, migrationsDir string, sugar *zap.SugaredLogger) error {
	sugar.Infof("running migrations from %s", migrationsDir)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("migration open db: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsDir,
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		sugar.Info("no new migrations, already up to date")
	}

	return nil
}
