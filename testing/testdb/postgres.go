// Package testdb runs a throwaway Postgres for the document store tests.
package testdb

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/Younus004/wisdom/internal/db"
	"github.com/Younus004/wisdom/internal/store/pgstore"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
)

var (
	shared     *Postgres
	sharedOnce sync.Once
)

type Postgres struct {
	Container *postgres.PostgresContainer
	DB        *bun.DB
	DSN       string
}

// SetupShared starts one Postgres per test binary and opens it through the
// production pool settings. Tests sharing it must not run in parallel; call
// Reset at the top of each subtest.
func SetupShared(t *testing.T) *Postgres {
	t.Helper()

	sharedOnce.Do(func() {
		ctx := context.Background()
		c, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("wisdom_test"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2),
			),
		)
		require.NoError(t, err)

		dsn, err := c.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)

		database, err := db.NewWithDSN(ctx, dsn, slog.New(slog.NewTextHandler(io.Discard, nil)))
		require.NoError(t, err)

		shared = &Postgres{Container: c, DB: database, DSN: dsn}
	})

	return shared
}

// Store returns a migrated document store over the shared database.
func (p *Postgres) Store(t *testing.T) *pgstore.Store {
	t.Helper()
	s := pgstore.New(p.DB, nil)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

// Reset empties every collection and restarts the insertion sequence.
func (p *Postgres) Reset(t *testing.T) {
	t.Helper()
	_, err := p.DB.ExecContext(context.Background(), "TRUNCATE documents RESTART IDENTITY")
	require.NoError(t, err, "failed to truncate documents")
}

func (p *Postgres) Cleanup(t *testing.T) {
	t.Helper()

	if err := db.Close(p.DB); err != nil {
		t.Logf("failed to close database: %s", err)
	}
	if p.Container != nil {
		if err := p.Container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %s", err)
		}
	}
}
