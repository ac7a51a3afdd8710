package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"strings"

	"shipment-risk-service/internal/adapters/catalog"
	"shipment-risk-service/internal/adapters/repositories"
	"shipment-risk-service/internal/config"
	"shipment-risk-service/internal/platform/db"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, databaseURL, 2)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	seedPath := config.Get("CATALOG_SEED_PATH", "data/seeds/catalog.json")
	if err := initAndSeed(ctx, conn, seedPath); err != nil {
		log.Fatal(err)
	}
}

func initAndSeed(ctx context.Context, conn *sql.DB, seedPath string) error {
	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return err
	}
	log.Println("Schema ready.")

	seed, err := catalog.LoadSeedFile(seedPath)
	if err != nil {
		return err
	}

	log.Printf("Importing catalog routes=%d vehicle_types=%d insurance_plans=%d ...",
		len(seed.Routes), len(seed.VehicleTypes), len(seed.InsurancePlans))
	if err := catalog.NewSQLCatalog(conn).Import(ctx, seed); err != nil {
		return err
	}
	log.Println("Catalog import complete.")

	return nil
}
