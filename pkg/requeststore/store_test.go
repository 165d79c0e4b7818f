//go:build integration

package requeststore_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sudokn/gptbatch/pkg/database"
	"github.com/sudokn/gptbatch/pkg/models"
	"github.com/sudokn/gptbatch/pkg/requeststore"
)

func newTestStore(t *testing.T) (*requeststore.Store, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(pgContainer)
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	cfg := database.Config{
		Host: host, Port: port.Int(), User: "test", Password: "test",
		Database: "test", SSLMode: "disable", MaxOpenConns: 5, MaxIdleConns: 2,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	}
	client, err := database.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return requeststore.New(client.Pool), client.Pool
}

func TestBulkUpsertBodiesThenFindByCustomIDs(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	reqs := []models.GPTBatchRequest{
		{CustomID: "example.com>materials>chunk>0:10", MfgETLD1: "example.com", Field: "materials", RequestBody: map[string]any{"x": 1.0}},
		{CustomID: "example.com>materials>chunk>10:20", MfgETLD1: "example.com", Field: "materials", RequestBody: map[string]any{"x": 2.0}},
	}
	require.NoError(t, store.BulkUpsertBodies(ctx, reqs))

	found, err := store.FindByCustomIDs(ctx, []string{reqs[0].CustomID, reqs[1].CustomID, "missing"})
	require.NoError(t, err)
	require.Len(t, found, 2)
}

func TestPairAndUnpairFromBatch(t *testing.T) {
	store, pool := newTestStore(t)
	ctx := context.Background()

	req := models.GPTBatchRequest{CustomID: "example.com>materials>chunk>0:10", MfgETLD1: "example.com", Field: "materials", RequestBody: map[string]any{}}
	require.NoError(t, store.BulkUpsertBodies(ctx, []models.GPTBatchRequest{req}))

	// batch_id references gpt_batches(id), which references api_key_bundles(id).
	batchID := uuid.New()
	_, err := pool.Exec(ctx, `INSERT INTO api_key_bundles (id, secret_env, quota_tokens, quota_requests) VALUES ('k1', 'K1_ENV', 1, 1)`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO gpt_batches (id, api_key_id, status) VALUES ($1, 'k1', 'validating')`, batchID)
	require.NoError(t, err)
	require.NoError(t, store.PairWithBatch(ctx, []string{req.CustomID}, batchID))
	require.NoError(t, store.UnpairFromBatch(ctx, batchID))
}

func TestDeleteByPrefixOnlyAffectsMatchingField(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	reqs := []models.GPTBatchRequest{
		{CustomID: "example.com>materials>chunk>0:10", MfgETLD1: "example.com", Field: "materials", RequestBody: map[string]any{}},
		{CustomID: "example.com>industries>chunk>0:10", MfgETLD1: "example.com", Field: "industries", RequestBody: map[string]any{}},
	}
	require.NoError(t, store.BulkUpsertBodies(ctx, reqs))

	require.NoError(t, store.DeleteByPrefix(ctx, "example.com", "materials"))

	remaining, err := store.FindIDsOnly(ctx, []string{reqs[0].CustomID, reqs[1].CustomID})
	require.NoError(t, err)
	require.Equal(t, []string{reqs[1].CustomID}, remaining)
}
