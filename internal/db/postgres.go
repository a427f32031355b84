package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"shoporders/internal/config"
)

// NewPostgresDB opens the pool and pings it before returning.
func NewPostgresDB(ctx context.Context, cfg *config.Config, log *slog.Logger) (*sql.DB, error) {
	return Open(ctx, cfg.DSN(), cfg.DBMaxOpenConns, log)
}

func Open(ctx context.Context, dsn string, maxOpen int, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen / 2)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		log.Error("postgres ping failed", "err", err)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info("connected to postgres", "max_open_conns", maxOpen)
	return db, nil
}
