package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func ParseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case Up, Down:
		return Direction(raw), nil
	}
	return "", fmt.Errorf("direction must be %q or %q, got %q", Up, Down, raw)
}

// Migrate applies embedded migrations in the given direction. Up runs every
// pending *.up.sql in version order; Down reverts every applied version in
// reverse order. Each migration runs in its own transaction together with
// its schema_migrations bookkeeping and returns the versions it touched.
func Migrate(ctx context.Context, db *sql.DB, direction Direction) ([]string, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	versions, err := migrationVersions(direction)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, version := range versions {
		applied, err := isApplied(ctx, db, version)
		if err != nil {
			return ran, err
		}
		if (direction == Up) == applied {
			continue
		}

		if err := runMigration(ctx, db, version, direction); err != nil {
			return ran, err
		}
		ran = append(ran, version)
	}

	return ran, nil
}

func migrationVersions(direction Direction) ([]string, error) {
	suffix := fmt.Sprintf(".%s.sql", direction)

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var versions []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasSuffix(name, suffix) {
			versions = append(versions, strings.TrimSuffix(name, suffix))
		}
	}

	sort.Strings(versions)
	if direction == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(versions)))
	}

	return versions, nil
}

func isApplied(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`,
		version,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return exists, nil
}

func runMigration(ctx context.Context, db *sql.DB, version string, direction Direction) error {
	content, err := migrationFS.ReadFile(fmt.Sprintf("migrations/%s.%s.sql", version, direction))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", version, err)
	}

	return WithTransaction(ctx, db, DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("execute migration %s %s: %w", version, direction, err)
		}

		if direction == Up {
			_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version)
		} else {
			_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, version)
		}
		if err != nil {
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		return nil
	})
}
