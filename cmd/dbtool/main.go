package main

import (
	"context"
	"database/sql"
	"fleet-ops-service/internal/adapters/repositories"
	"fleet-ops-service/internal/config"
	"fleet-ops-service/internal/platform/db"
	"fleet-ops-service/internal/platform/logging"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// dbtool creates the Postgres schema and loads capacity constraints.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	logger, err := logging.New(config.Get("APP_ENV", "development") == "production")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, databaseURL)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer conn.Close()

	seedPath := config.Get("SEED_PATH", "data/seeds/constraints.json")
	if err := initAndSeed(ctx, logger, conn, seedPath); err != nil {
		logger.Fatal("dbtool failed", zap.Error(err))
	}
}

func initAndSeed(ctx context.Context, logger *zap.Logger, conn *sql.DB, seedPath string) error {
	logger.Info("initializing database schema")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return err
	}
	logger.Info("schema ready")

	if _, err := os.Stat(seedPath); os.IsNotExist(err) {
		logger.Info("no seed file, skipping", zap.String("path", seedPath))
		return nil
	}

	logger.Info("seeding capacity constraints", zap.String("path", seedPath))
	if err := repositories.SeedConstraintsFromJSON(ctx, conn, seedPath); err != nil {
		return err
	}
	logger.Info("seeding complete")

	return nil
}
