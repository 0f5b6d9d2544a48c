package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"calzados-be/internal/config"
	"calzados-be/internal/db"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	mode := flag.String("mode", "up", "migration mode: up or down")
	dir := flag.String("dir", "./migrations", "migrations directory")
	flag.Parse()

	cfg := config.LoadConfig()

	database, err := db.InitDB(cfg)
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer database.Close()

	driver, err := postgres.WithInstance(database, &postgres.Config{})
	if err != nil {
		log.Fatalf("failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", *dir),
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}

	switch *mode {
	case "up":
		err = m.Up()
	case "down":
		err = m.Steps(-1)
	default:
		log.Fatalf("unknown mode: %s (use 'up' or 'down')", *mode)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("Nothing to migrate.")
		return
	}
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	fmt.Println("Migration complete.")
}
