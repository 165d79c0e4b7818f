// Package apikeys manages the API key bundles the batch station schedules
// work against: quota, in-use accounting and availability cooldowns.
package apikeys

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudokn/gptbatch/pkg/batcherr"
	"github.com/sudokn/gptbatch/pkg/config"
	"github.com/sudokn/gptbatch/pkg/models"
)

// Store is the API key registry's database-backed implementation.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps pool as a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Sync upserts the configured key bundles into the database, preserving
// each key's existing TokensInUse/AvailableAt if it already exists.
func (s *Store) Sync(ctx context.Context, keys []config.APIKeyConfig) error {
	for _, k := range keys {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO api_key_bundles (id, secret_env, quota_tokens, quota_requests)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE
			   SET secret_env = EXCLUDED.secret_env,
			       quota_tokens = EXCLUDED.quota_tokens,
			       quota_requests = EXCLUDED.quota_requests,
			       updated_at = now()`,
			k.ID, k.SecretEnv, k.QuotaTokens, k.QuotaRequests)
		if err != nil {
			return fmt.Errorf("%w: syncing api key %s: %v", batcherr.ErrInfrastructure, k.ID, err)
		}
	}
	return nil
}

// ListAll returns every configured key bundle, one Batch Station worker per
// key.
func (s *Store) ListAll(ctx context.Context) ([]models.APIKeyBundle, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, secret_env, quota_tokens, quota_requests, tokens_in_use, requests_in_use, available_at, created_at, updated_at
		 FROM api_key_bundles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing api keys: %v", batcherr.ErrInfrastructure, err)
	}
	defer rows.Close()

	var out []models.APIKeyBundle
	for rows.Next() {
		var k models.APIKeyBundle
		if err := rows.Scan(&k.ID, &k.SecretEnv, &k.QuotaTokens, &k.QuotaRequests,
			&k.TokensInUse, &k.RequestsInUse, &k.AvailableAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning api key: %v", batcherr.ErrInfrastructure, err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// ResetTokensInUse recomputes tokens_in_use for keyID as the sum of
// total_tokens across its non-finalized batches, matching the invariant
// that in-use accounting is derived fresh each tick rather than tracked
// incrementally across ticks.
func (s *Store) ResetTokensInUse(ctx context.Context, keyID string) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_tokens), 0) FROM gpt_batches
		 WHERE api_key_id = $1 AND status NOT IN ('completed', 'expired', 'failed', 'cancelled')`,
		keyID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("%w: summing in-flight tokens for %s: %v", batcherr.ErrInfrastructure, keyID, err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE api_key_bundles SET tokens_in_use = $1, updated_at = now() WHERE id = $2`, total, keyID)
	if err != nil {
		return 0, fmt.Errorf("%w: updating tokens_in_use for %s: %v", batcherr.ErrInfrastructure, keyID, err)
	}
	return total, nil
}

// ApplyCooldown pushes keyID's AvailableAt to now+duration.
func (s *Store) ApplyCooldown(ctx context.Context, keyID string, now time.Time, duration time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_key_bundles SET available_at = $1, updated_at = now() WHERE id = $2`,
		now.Add(duration), keyID)
	if err != nil {
		return fmt.Errorf("%w: applying cooldown for %s: %v", batcherr.ErrInfrastructure, keyID, err)
	}
	return nil
}
