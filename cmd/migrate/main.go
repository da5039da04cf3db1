package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"blink-market/internal/config"
	"blink-market/internal/logger"
)

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    VARCHAR(255) PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func main() {
	dir := flag.String("dir", "migrations", "directory holding the *.sql files")
	dryRun := flag.Bool("dry-run", false, "list pending migrations without applying them")
	flag.Parse()

	cfg, err := config.Read()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	zlog, err := logger.New(cfg.App.Name+"-migrate", cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if cfg.Database.Driver != "postgres" {
		zlog.Fatal("migrations only target postgres; sqlite schemas come from AutoMigrate",
			zap.String("driver", cfg.Database.Driver))
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		zlog.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		zlog.Fatal("failed to ping database", zap.Error(err))
	}
	zlog.Info("connected to database", zap.String("host", cfg.Database.Host), zap.String("name", cfg.Database.Name))

	if err := migrate(ctx, db, os.DirFS(*dir), *dryRun, zlog); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			zlog.Fatal("migration failed",
				zap.Error(err),
				zap.String("code", string(pqErr.Code)),
				zap.String("constraint", pqErr.Constraint),
				zap.String("detail", pqErr.Detail),
			)
		}
		zlog.Fatal("migration failed", zap.Error(err))
	}
}

func migrate(ctx context.Context, db *sql.DB, files fs.FS, dryRun bool, log *zap.Logger) error {
	if _, err := db.ExecContext(ctx, createVersionTable); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	todo, err := pending(files, applied)
	if err != nil {
		return err
	}
	if len(todo) == 0 {
		log.Info("schema is up to date", zap.Int("applied", len(applied)))
		return nil
	}

	for _, name := range todo {
		if dryRun {
			log.Info("pending migration", zap.String("file", name))
			continue
		}
		body, err := fs.ReadFile(files, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := apply(ctx, db, name, string(body)); err != nil {
			return err
		}
		log.Info("applied migration", zap.String("file", name))
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

// pending returns the top-level .sql files of files not yet in applied, in
// lexical order. Files are named with a zero-padded numeric prefix.
func pending(files fs.FS, applied map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".sql" || applied[version(name)] {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func version(file string) string {
	return strings.TrimSuffix(file, ".sql")
}

// apply runs one file and records it in the same transaction.
func apply(ctx context.Context, db *sql.DB, name, body string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version(name)); err != nil {
		return fmt.Errorf("record %s: %w", name, err)
	}
	return tx.Commit()
}
