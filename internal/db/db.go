package db

import (
	"database/sql"
	"fmt"
	"time"

	"calzados-be/internal/config"

	_ "github.com/lib/pq"
)

// InitDB opens the shared connection pool. Both request handling and the
// expiration sweeper run on this pool, so it keeps a couple of idle
// connections around instead of churning.
func InitDB(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
	)

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return conn, nil
}
