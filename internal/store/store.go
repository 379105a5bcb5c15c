// Package store provides the pgx-backed host content stores: posts and
// their meta, group terms and their meta, post/group relationships and the
// two statistics tables.
//
// Each store embeds Base for the shared pool and logger. Stores never import
// each other.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/dbpool"
	"github.com/adcommander/adcmdr-tools/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// Base contains shared dependencies for all stores.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// beginTx starts a read-write transaction.
func (b *Base) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return tx, nil
}

// upsertMeta writes each key of meta into table for owner, replacing
// existing values. table and column are package constants, never input.
func upsertMeta(ctx context.Context, tx pgx.Tx, table, column string, owner int64, meta models.Meta) error {
	query := `INSERT INTO ` + table + ` (` + column + `, meta_key, meta_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (` + column + `, meta_key) DO UPDATE SET meta_value = EXCLUDED.meta_value`

	batch := &pgx.Batch{}
	for k, v := range meta {
		batch.Queue(query, owner, k, v)
	}

	br := tx.SendBatch(ctx, batch)

	for range meta {
		if _, err := br.Exec(); err != nil {
			br.Close() //nolint:errcheck // the first error is the useful one.

			return fmt.Errorf("writing %s: %w", table, err)
		}
	}

	return br.Close()
}

// readMeta loads every meta row of owner from table.
func readMeta(ctx context.Context, q querier, table, column string, owner int64) (models.Meta, error) {
	rows, err := q.Query(ctx,
		`SELECT meta_key, meta_value FROM `+table+` WHERE `+column+` = $1`, owner)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	meta := models.Meta{}

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}

		meta[k] = v
	}

	return meta, rows.Err()
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}
