// Command dropdb drops the exchange table of the current environment.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"threadline/internal/config"
	"threadline/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	tables := postgres.NewTableNames(cfg.TablePrefix)
	repo := postgres.NewExchangeRepository(&postgres.RepositoryConfig{Pool: pool, Tables: tables, Logger: logger})
	if err := repo.DropSchema(ctx); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}

	fmt.Printf("Dropped %s (prefix: %s)\n", tables.Exchanges, cfg.TablePrefix)
}
