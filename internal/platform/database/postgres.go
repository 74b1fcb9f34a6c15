package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dsa_tracker/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

var DB *sql.DB

// Connect opens the pool from config.AppConfig and verifies it with a ping.
func Connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	DB = db
	return db, nil
}

// Migrate runs each schema step in order, stopping at the first failure.
func Migrate(ctx context.Context, db *sql.DB, steps ...func(context.Context, *sql.DB) error) error {
	for i, step := range steps {
		if err := step(ctx, db); err != nil {
			return fmt.Errorf("schema step %d: %w", i+1, err)
		}
	}
	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
		DB = nil
	}
}
