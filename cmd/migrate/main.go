package main

import (
	"context"
	"flag"
	"log"

	migrations "github.com/agriquest/agriquest-api/db"
	"github.com/agriquest/agriquest-api/pkg/config"
	"github.com/agriquest/agriquest-api/pkg/database"
)

func main() {
	versionOnly := flag.Bool("version", false, "print the current migration version and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dbConn, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer dbConn.Close() //nolint:errcheck

	ctx := context.Background()

	if *versionOnly {
		version, err := database.MigrationVersion(ctx, dbConn)
		if err != nil {
			log.Fatalf("failed to read migration version: %v", err)
		}
		log.Printf("migration version: %d", version)
		return
	}

	if err := database.Migrate(ctx, dbConn, migrations.Migrations); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	log.Println("migrations applied")
}
