package postgres

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"sort"

	ierr "github.com/flexprice/membership/internal/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies every embedded migration not yet recorded in schema_migrations.
// Each file runs in its own transaction.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    VARCHAR(255) PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create schema_migrations table").
			Mark(ierr.ErrDatabase)
	}

	names, err := migrationNames()
	if err != nil {
		return err
	}

	for _, name := range names {
		var applied bool
		if err := db.GetContext(ctx, &applied,
			`SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, name); err != nil {
			return ierr.WithError(err).Mark(ierr.ErrDatabase)
		}
		if applied {
			db.logger.Debugw("migration already applied", "version", name)
			continue
		}

		body, err := migrationFS.ReadFile(name)
		if err != nil {
			return ierr.WithError(err).Mark(ierr.ErrSystem)
		}

		err = db.WithTx(ctx, func(ctx context.Context) error {
			q := db.GetQuerier(ctx)
			if _, err := q.ExecContext(ctx, string(body)); err != nil {
				return err
			}
			_, err := q.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			return ierr.WithError(err).
				WithHintf("Failed to apply migration %s", name).
				Mark(ierr.ErrDatabase)
		}
		db.logger.Infow("applied migration", "version", name)
	}

	return nil
}

// WriteMigrations prints every embedded migration in apply order without touching the database
func WriteMigrations(w io.Writer) error {
	names, err := migrationNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		body, err := migrationFS.ReadFile(name)
		if err != nil {
			return ierr.WithError(err).Mark(ierr.ErrSystem)
		}
		if _, err := fmt.Fprintf(w, "-- %s\n%s\n", name, body); err != nil {
			return ierr.WithError(err).Mark(ierr.ErrSystem)
		}
	}
	return nil
}

func migrationNames() ([]string, error) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrSystem)
	}
	sort.Strings(names)
	return names, nil
}
