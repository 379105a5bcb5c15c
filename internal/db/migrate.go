// Package db applies the embedded goose migrations that create the host
// content schema: posts, post meta, group terms, term meta, relationships
// and the two statistics tables.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/dbpool"
)

// openProvider wraps the pool's connection string in a database/sql handle,
// which goose requires. The caller closes the returned DB.
func openProvider(pool *dbpool.Pool, fsys fs.FS) (*goose.Provider, *sql.DB, error) {
	sqlDB, err := sql.Open("pgx", pool.ConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("opening sql.DB for migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, fsys)
	if err != nil {
		sqlDB.Close()

		return nil, nil, fmt.Errorf("creating goose provider: %w", err)
	}

	return provider, sqlDB, nil
}

// RunMigrations applies all pending migrations from fsys.
func RunMigrations(ctx context.Context, pool *dbpool.Pool, log *logrus.Logger, fsys fs.FS) error {
	provider, sqlDB, err := openProvider(pool, fsys)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", r.Source.Version, r.Source.Path, r.Error)
		}

		log.WithFields(logrus.Fields{
			"version":  r.Source.Version,
			"file":     r.Source.Path,
			"duration": r.Duration,
		}).Info("migration applied")
	}

	if len(results) == 0 {
		log.Debug("schema up to date")
	}

	return nil
}

// AppliedVersion returns the current database schema version and whether
// migrations from fsys are still pending.
func AppliedVersion(ctx context.Context, pool *dbpool.Pool, fsys fs.FS) (int64, bool, error) {
	provider, sqlDB, err := openProvider(pool, fsys)
	if err != nil {
		return 0, false, err
	}
	defer sqlDB.Close()

	current, target, err := provider.GetVersions(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("reading schema version: %w", err)
	}

	return current, current < target, nil
}
