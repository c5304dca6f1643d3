package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pratik-mahalle/ec2inventory/internal/config"
	"github.com/pratik-mahalle/ec2inventory/internal/repository/postgres"
	"github.com/pratik-mahalle/ec2inventory/migrations"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := postgres.New(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database\n", cfg.Database.Driver)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	applied, err := postgres.RunMigrations(ctx, db, migrations.Files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed after %d applied: %v\n", applied, err)
		os.Exit(1)
	}

	if applied == 0 {
		fmt.Println("Schema is up to date")
		return
	}
	fmt.Printf("Applied %d migrations\n", applied)
}
