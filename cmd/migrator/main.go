package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/subsavvy/subsavvy/internal/config"
	"github.com/subsavvy/subsavvy/internal/logger"
	"github.com/subsavvy/subsavvy/internal/storage/postgresql"
)

const (
	migrationsTable           = "schema_migrations"
	defaultMigrationsPath     = "./migrations"
	migrationStatementTimeout = 30 * time.Second
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(cfg.Env)
	log.Info("starting migrator", slog.String("env", cfg.Env))

	storage, err := postgresql.New(cfg.PostgreSQL)
	if err != nil {
		log.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Warn("failed to close database connection", slog.Any("error", err))
		}
	}()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = defaultMigrationsPath
	}

	if err := runMigrations(context.Background(), storage.GetDB(), migrationsPath, log); err != nil {
		log.Error("migration failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("migrations applied successfully")
}

func runMigrations(ctx context.Context, db *sql.DB, migrationsPath string, log *slog.Logger) error {
	files, err := filepath.Glob(filepath.Join(migrationsPath, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to scan migrations directory: %w", err)
	}

	if len(files) == 0 {
		return fmt.Errorf("no migrations found in %s", migrationsPath)
	}

	sort.Strings(files)

	if err := ensureMigrationsTable(ctx, db); err != nil {
		return err
	}

	applied, err := loadAppliedMigrations(ctx, db)
	if err != nil {
		return err
	}

	for _, file := range files {
		version := strings.TrimSuffix(filepath.Base(file), ".up.sql")
		if _, ok := applied[version]; ok {
			log.Debug("migration already applied", slog.String("version", version))
			continue
		}

		contents, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		log.Info("applying migration", slog.String("version", version))

		if err := applyMigration(ctx, db, version, string(contents)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", version, err)
		}
	}

	return nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	execCtx, cancel := context.WithTimeout(ctx, migrationStatementTimeout)
	defer cancel()

	const query = `CREATE TABLE IF NOT EXISTS ` + migrationsTable + ` (
        version TEXT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

	if _, err := db.ExecContext(execCtx, query); err != nil {
		return fmt.Errorf("failed to ensure migrations table: %w", err)
	}

	return nil
}

func loadAppliedMigrations(ctx context.Context, db *sql.DB) (map[string]struct{}, error) {
	queryCtx, cancel := context.WithTimeout(ctx, migrationStatementTimeout)
	defer cancel()

	rows, err := db.QueryContext(queryCtx, "SELECT version FROM "+migrationsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to load applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan applied migration: %w", err)
		}

		applied[version] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applied migrations: %w", err)
	}

	return applied, nil
}

// applyMigration runs the migration and records its version in one
// transaction, so a failed statement leaves no half-applied version row.
func applyMigration(ctx context.Context, db *sql.DB, version, statement string) error {
	execCtx, cancel := context.WithTimeout(ctx, migrationStatementTimeout)
	defer cancel()

	tx, err := db.BeginTx(execCtx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(execCtx, statement); err != nil {
		return err
	}

	if _, err := tx.ExecContext(execCtx, "INSERT INTO "+migrationsTable+" (version) VALUES ($1)", version); err != nil {
		return err
	}

	return tx.Commit()
}
