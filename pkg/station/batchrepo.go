// Package station runs one background worker per configured API key,
// polling its in-flight batches, reconciling finished ones into the request
// store, and packing+submitting new batches when the key has headroom —
// the Go equivalent of the provider scheduler's per-key ingestion loop.
package station

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudokn/gptbatch/pkg/batcherr"
	"github.com/sudokn/gptbatch/pkg/models"
)

// BatchRepo persists GPTBatch rows — the station's only direct table
// dependency beyond the request/api-key stores it's handed.
type BatchRepo struct {
	pool *pgxpool.Pool
}

// NewBatchRepo wraps pool as a BatchRepo.
func NewBatchRepo(pool *pgxpool.Pool) *BatchRepo {
	return &BatchRepo{pool: pool}
}

// Create inserts a new batch row in the validating state.
func (r *BatchRepo) Create(ctx context.Context, b *models.GPTBatch) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO gpt_batches (id, api_key_id, external_batch_id, status, input_file_id, total_tokens, total_requests)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.APIKeyID, b.ExternalBatchID, b.Status, b.InputFileID, b.TotalTokens, b.TotalRequests)
	if err != nil {
		return fmt.Errorf("%w: creating batch %s: %v", batcherr.ErrInfrastructure, b.ID, err)
	}
	return nil
}

// ListInFlight returns every non-finalized batch for keyID.
func (r *BatchRepo) ListInFlight(ctx context.Context, keyID string) ([]models.GPTBatch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, api_key_id, external_batch_id, status, input_file_id, output_file_id, error_file_id,
		        total_tokens, total_requests, error_message, created_at, submitted_at, completed_at
		 FROM gpt_batches
		 WHERE api_key_id = $1 AND status NOT IN ('completed', 'expired', 'failed', 'cancelled')`,
		keyID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing in-flight batches for %s: %v", batcherr.ErrInfrastructure, keyID, err)
	}
	defer rows.Close()

	var out []models.GPTBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateStatus applies the result of a RetrieveBatch poll.
func (r *BatchRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.BatchStatus, outputFileID, errorFileID, errMsg string, completedAt *time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE gpt_batches
		 SET status = $1, output_file_id = $2, error_file_id = $3, error_message = $4, completed_at = $5
		 WHERE id = $6`,
		status, outputFileID, errorFileID, errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("%w: updating batch %s: %v", batcherr.ErrInfrastructure, id, err)
	}
	return nil
}

func scanBatch(rows pgx.Rows) (models.GPTBatch, error) {
	var b models.GPTBatch
	if err := rows.Scan(&b.ID, &b.APIKeyID, &b.ExternalBatchID, &b.Status, &b.InputFileID, &b.OutputFileID,
		&b.ErrorFileID, &b.TotalTokens, &b.TotalRequests, &b.ErrorMessage, &b.CreatedAt, &b.SubmittedAt, &b.CompletedAt); err != nil {
		return b, fmt.Errorf("%w: scanning batch row: %v", batcherr.ErrInfrastructure, err)
	}
	return b, nil
}
