package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"threadline/internal/auth"
	"threadline/internal/config"
	chatRepo "threadline/internal/domain/repositories/chat"
	"threadline/internal/handler"
	"threadline/internal/middleware"
	"threadline/internal/profile"
	"threadline/internal/repository/memory"
	"threadline/internal/repository/postgres"
	serviceChat "threadline/internal/service/chat"
	serviceLLM "threadline/internal/service/llm"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("gateway starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"provider", cfg.LLMProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional bearer auth
	var verifier auth.JWTVerifier
	if cfg.JWKSURL != "" {
		v, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer v.Close()
		verifier = v
	} else {
		logger.Warn("JWKS_URL not set, bearer auth disabled")
	}

	// Exchange store
	var exchanges chatRepo.ExchangeRepository
	if cfg.DatabaseURL != "" {
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		repo := postgres.NewExchangeRepository(&postgres.RepositoryConfig{
			Pool:   pool,
			Tables: postgres.NewTableNames(cfg.TablePrefix),
			Logger: logger,
		})
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to prepare schema: %v", err)
		}
		exchanges = repo
		logger.Info("database connected", "table_prefix", cfg.TablePrefix)
	} else {
		exchanges = memory.NewExchangeRepository()
		logger.Warn("DATABASE_URL not set, exchanges kept in memory")
	}

	// Responder
	profiles, err := profile.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to load assistant profiles: %v", err)
	}
	assistant, err := profiles.Get(cfg.LLMProfile)
	if err != nil {
		log.Fatalf("Unknown assistant profile: %v", err)
	}
	provider, err := serviceLLM.NewProviderFactory(cfg).GetProvider(cfg.LLMProvider)
	if err != nil {
		log.Fatalf("Failed to setup LLM provider: %v", err)
	}
	responder := serviceLLM.NewResponder(provider, cfg.LLMProvider, cfg.LLMModel, assistant, logger)

	chatService := serviceChat.NewService(exchanges, responder, logger)
	healthService := serviceChat.NewHealthChecker(exchanges, responder, logger)
	chatHandler := handler.NewChatHandler(chatService, healthService, logger)

	logger.Info("services initialized", "profile", assistant.Name)

	mux := http.NewServeMux()
	chatHandler.RegisterRoutes(mux)

	// Order: CORS → Recovery → RequestLog → Auth → Routes
	var h http.Handler = mux
	h = middleware.AuthMiddleware(verifier, logger)(h)
	h = middleware.RequestLog(logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS must wrap auth so pre-flight requests are answered
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped")
}
