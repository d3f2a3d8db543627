// Package testutil provides shared testing utilities for the supportkb project.
//
// It contains reusable test infrastructure usable across packages, following
// the pattern of standard library packages like net/http/httptest.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDBContainer wraps a PostgreSQL test container with a connection pool.
//
// Provides:
//   - Isolated PostgreSQL instance with the pgvector extension
//   - Connection pool with the pgvector codec registered
//   - Automatic cleanup via the returned cleanup function
type TestDBContainer struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL container for testing with the pgvector
// extension, applies this repo's migrations, and returns a ready pool.
//
// Example:
//
//	func TestCorpusRoundTrip(t *testing.T) {
//	    db, cleanup := testutil.SetupTestDB(t)
//	    defer cleanup()
//
//	    store := corpus.NewStore(corpus.NewPGQuerier(db.Pool), 768, nil)
//	    // ...
//	}
func SetupTestDB(t *testing.T) (*TestDBContainer, func()) {
	t.Helper()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("supportkb_test"),
		postgres.WithUsername("supportkb_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("Failed to get connection string: %v", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("Failed to parse connection config: %v", err)
	}
	// Same codec registration the production pool uses, so embedding
	// columns scan into pgvector.Vector values in tests too.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("Failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	container := &TestDBContainer{
		Container: pgContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(context.Background())
	}

	return container, cleanup
}

// findProjectRoot finds the project root directory by looking for go.mod.
// This allows tests to run from any subdirectory and still find migration files.
func findProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to get current file path")
	}

	dir := filepath.Dir(filename)

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// runMigrations applies the db/migrations up files in order, each in its
// own transaction. Simplified from the golang-migrate path production uses;
// good enough for disposable test databases.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to find project root: %w", err)
	}

	migrationFiles := []string{
		filepath.Join(projectRoot, "db/migrations/000001_create_knowledge_records.up.sql"),
		filepath.Join(projectRoot, "db/migrations/000002_create_kb_entries.up.sql"),
	}

	for _, migrationPath := range migrationFiles {
		// #nosec G304 -- migration paths are hardcoded constants, not from user input
		migrationSQL, err := os.ReadFile(migrationPath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", migrationPath, err)
		}

		if len(migrationSQL) == 0 {
			continue
		}

		err = func() error {
			tx, err := pool.Begin(ctx)
			if err != nil {
				return fmt.Errorf("failed to begin transaction for migration %s: %w", migrationPath, err)
			}

			committed := false
			defer func() {
				if !committed {
					_ = tx.Rollback(ctx)
				}
			}()

			if _, err = tx.Exec(ctx, string(migrationSQL)); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", migrationPath, err)
			}

			if err = tx.Commit(ctx); err != nil {
				return fmt.Errorf("failed to commit migration %s: %w", migrationPath, err)
			}
			committed = true
			return nil
		}()

		if err != nil {
			return err
		}
	}

	return nil
}
