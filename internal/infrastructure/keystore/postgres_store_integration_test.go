//go:build integration

package keystore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/sharedcookie/internal/config"
	"github.com/turtacn/sharedcookie/internal/domain/models"
	pgconn "github.com/turtacn/sharedcookie/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/sharedcookie/pkg/logger"
)

func TestPostgresStore(t *testing.T) {
	if os.Getenv("SKIP_DOCKER_TESTS") == "true" {
		t.Skip("Skipping Docker-dependent tests")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("sharedcookie"),
		postgres.WithUsername("sharedcookie"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	poolConfig, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)

	db, err := pgconn.NewDBConnectionWithPoolConfig(ctx, &config.DatabaseConfig{MaxConns: 4}, poolConfig, logger.NewNoopLogger())
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db.Pool(), "public.sharedcookie_keys", logger.NewNoopLogger())
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx), "schema creation is idempotent")
	require.NoError(t, store.Listen(ctx))
	defer store.Close()

	a, b := newTestKey(t), newTestKey(t)
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Save(ctx, b))

	select {
	case <-store.Changes():
	case <-time.After(10 * time.Second):
		t.Fatal("no notification after save")
	}

	keys, err := store.LoadAll(ctx)
	require.NoError(t, err)
	assertSameKeys(t, []*models.KeyEntry{a, b}, keys)

	a.Revoked = true
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Delete(ctx, b.ID))

	keys, err = store.LoadAll(ctx)
	require.NoError(t, err)
	assertSameKeys(t, []*models.KeyEntry{a}, keys)
}
