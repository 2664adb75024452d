package main

import (
	"context"
	"log"

	"incuba/adapters/api"
	"incuba/adapters/postgres"
	"incuba/adapters/postgres/migrations"
	"incuba/app"
	"incuba/internal/config"
	"incuba/internal/errors"
	"incuba/internal/likelihood"
	"incuba/internal/testkit"
	"incuba/ports"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

// initDatabase connects to PostgreSQL and brings the schema up to date
func initDatabase(appConfig *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", appConfig.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	// Run migrations
	if err := migrations.NewMigrator(db).Up(context.Background()); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}

	return db, nil
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load application configuration
	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Pick the run store: PostgreSQL when configured, in-memory otherwise
	var store ports.RunStore
	if appConfig.Database.URL != "" {
		db, err := initDatabase(appConfig)
		if err != nil {
			log.Fatal("Failed to initialize database:", err)
		}
		defer db.Close()
		store = postgres.NewRunRepository(db)
		log.Println("Using PostgreSQL run store")
	} else {
		log.Println("No DATABASE_URL configured, using in-memory run store")
		store = testkit.NewInMemoryRunStore()
	}

	kit := testkit.NewTestKit()
	service := app.NewAnalysisService(likelihood.NewEngine(), kit.RNGAdapter(), store)
	server := api.NewServer(service, store, appConfig)

	// Start the server
	log.Printf("🚀 Starting incuba server on port %s", appConfig.Server.Port)
	log.Fatal(server.Start(":" + appConfig.Server.Port))
}
