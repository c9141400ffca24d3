package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"paperfolio/internal/api"
	"paperfolio/internal/auth"
	"paperfolio/internal/config"
	"paperfolio/internal/db"
	"paperfolio/internal/portfolio"
	"paperfolio/internal/quote"
	"paperfolio/internal/trading"
)

// Main entry point: sets up database, services, and the HTTP server
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required (FOLIO_AUTH_JWTSECRET)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatalf("connect to database: %v", err)
	}
	defer database.Close(ctx)

	if err := database.Migrate(ctx); err != nil {
		logger.Fatalf("apply migrations: %v", err)
	}

	var quotes quote.Provider
	if cfg.Quote.Endpoint != "" {
		quotes = quote.NewClient(cfg.Quote.Endpoint)
		logger.Infof("using quote endpoint %s", cfg.Quote.Endpoint)
	} else {
		quotes = quote.DefaultStatic()
		logger.Warn("no quote endpoint configured, serving static quotes")
	}

	authService := auth.NewService(database, cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	calculator := portfolio.NewCalculator(database, quotes)
	executor := trading.NewExecutor(database, quotes)

	handler := api.NewHandler(database, authService, calculator, executor, quotes, logger)
	router := api.NewRouter(handler)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
}
