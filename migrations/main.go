package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"shoporders/internal/config"
	"shoporders/internal/db"
	"shoporders/internal/logger"
)

var migrations = []string{
	"001_create_users_shops.sql",
	"002_create_orders.sql",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{Service: "orders-migrate", Env: cfg.AppEnv, Level: cfg.LogLevel})

	ctx := context.Background()
	conn, err := db.NewPostgresDB(ctx, cfg, log)
	if err != nil {
		os.Exit(1)
	}
	defer conn.Close()

	root, err := projectRoot()
	if err != nil {
		log.Error("locate project root", "err", err)
		os.Exit(1)
	}

	applied := 0
	for _, name := range migrations {
		if err := apply(ctx, conn, filepath.Join(root, "migrations", name)); err != nil {
			log.Error("migration failed", "file", name, "err", err)
			continue
		}
		log.Info("migration applied", "file", name)
		applied++
	}
	log.Info("migrations done", "applied", applied, "total", len(migrations))
	if applied != len(migrations) {
		os.Exit(1)
	}
}

func apply(ctx context.Context, conn *sql.DB, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, string(content))
	return err
}

func projectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(wd, "go.mod")); err == nil {
			return wd, nil
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			return "", os.ErrNotExist
		}
		wd = parent
	}
}
