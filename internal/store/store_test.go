package store_test

import (
	"context"
	"os"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/adcommander/adcmdr-tools/internal/db"
	"github.com/adcommander/adcmdr-tools/internal/db/migrations"
	"github.com/adcommander/adcmdr-tools/internal/dbpool"
	"github.com/adcommander/adcmdr-tools/internal/store"
)

// testEnv holds shared test infrastructure (single pool across all tests).
type testEnv struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

var sharedEnv *testEnv

func getTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if sharedEnv != nil {
		return sharedEnv
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	pool, err := dbpool.NewPool(ctx, dbURL, dbpool.Options{MaxConns: 4})
	if err != nil {
		t.Fatalf("connecting to test DB: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
		t.Fatalf("migrating test DB: %v", err)
	}

	sharedEnv = &testEnv{pool: pool, log: log}

	return sharedEnv
}

// setupTestBase returns a Base over an emptied schema. Store tests share one
// database and must not run in parallel.
func setupTestBase(t *testing.T) store.Base {
	t.Helper()

	env := getTestEnv(t)

	_, err := env.pool.Exec(context.Background(),
		`TRUNCATE posts, postmeta, terms, termmeta, term_relationships, adcmdr_impressions, adcmdr_clicks RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("resetting test schema: %v", err)
	}

	return store.Base{Pool: env.pool, Log: env.log}
}
