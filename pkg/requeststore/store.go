// Package requeststore implements the request store's CRUD and bulk
// operations over gpt_batch_requests, grounded on the chunked,
// error-aggregating bulk write semantics of the system this module
// replaces: every chunk is attempted even if an earlier one fails, and
// failures are reported together once the whole pass completes.
package requeststore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudokn/gptbatch/pkg/batcherr"
	"github.com/sudokn/gptbatch/pkg/customid"
	"github.com/sudokn/gptbatch/pkg/models"
)

// chunkSize bounds how many rows a single bulk operation touches per
// round-trip, matching the source system's chunked bulk_write calls.
const chunkSize = 5000

// Store is the request store's database-backed implementation.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps pool as a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// FindByCustomIDs returns the request rows matching any of customIDs. IDs
// with no matching row are simply absent from the result.
func (s *Store) FindByCustomIDs(ctx context.Context, customIDs []string) ([]models.GPTBatchRequest, error) {
	if len(customIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT custom_id, mfg_etld1, field, request_body, response_blob, batch_id, created_at, updated_at
		 FROM gpt_batch_requests WHERE custom_id = ANY($1)`, customIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: find_by_custom_ids: %v", batcherr.ErrInfrastructure, err)
	}
	defer rows.Close()

	var out []models.GPTBatchRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// FindIDsOnly returns the subset of customIDs that have a matching row,
// without fetching the rest of each row — used to detect missing requests
// cheaply.
func (s *Store) FindIDsOnly(ctx context.Context, customIDs []string) ([]string, error) {
	if len(customIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT custom_id FROM gpt_batch_requests WHERE custom_id = ANY($1)`, customIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: find_ids_only: %v", batcherr.ErrInfrastructure, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: find_ids_only scan: %v", batcherr.ErrInfrastructure, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// RequestUpdate is a single row update applied by BulkUpdate: ResponseBlob
// overwrites the stored response for CustomID.
type RequestUpdate struct {
	CustomID     string
	ResponseBlob map[string]any
}

// BulkUpdate applies updates in chunks of chunkSize, attempting every chunk
// even if an earlier one fails, then returns a *batcherr.BulkWriteError
// aggregating whatever failed.
func (s *Store) BulkUpdate(ctx context.Context, updates []RequestUpdate) error {
	return forEachChunk(updates, func(chunk []RequestUpdate) error {
		batch := &pgx.Batch{}
		for _, u := range chunk {
			body, err := json.Marshal(u.ResponseBlob)
			if err != nil {
				return fmt.Errorf("marshaling response_blob for %s: %w", u.CustomID, err)
			}
			batch.Queue(
				`UPDATE gpt_batch_requests SET response_blob = $1, updated_at = now() WHERE custom_id = $2`,
				body, u.CustomID)
		}
		return execBatch(ctx, s.pool, batch, len(chunk))
	})
}

// BulkUpsertBodies inserts or updates the request_body (and mfg_etld1/field)
// of each request, leaving any existing response_blob/batch_id untouched on
// conflict — the SQL equivalent of $set on request body fields plus
// $setOnInsert on the rest.
func (s *Store) BulkUpsertBodies(ctx context.Context, requests []models.GPTBatchRequest) error {
	return forEachChunk(requests, func(chunk []models.GPTBatchRequest) error {
		batch := &pgx.Batch{}
		for _, r := range chunk {
			body, err := json.Marshal(r.RequestBody)
			if err != nil {
				return fmt.Errorf("marshaling request_body for %s: %w", r.CustomID, err)
			}
			batch.Queue(
				`INSERT INTO gpt_batch_requests (custom_id, mfg_etld1, field, request_body)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (custom_id) DO UPDATE
				   SET request_body = EXCLUDED.request_body, updated_at = now()`,
				r.CustomID, r.MfgETLD1, r.Field, body)
		}
		return execBatch(ctx, s.pool, batch, len(chunk))
	})
}

// PairWithBatch sets batch_id on every row in customIDs.
func (s *Store) PairWithBatch(ctx context.Context, customIDs []string, batchID uuid.UUID) error {
	return forEachChunk(customIDs, func(chunk []string) error {
		_, err := s.pool.Exec(ctx,
			`UPDATE gpt_batch_requests SET batch_id = $1, updated_at = now() WHERE custom_id = ANY($2)`,
			batchID, chunk)
		if err != nil {
			return fmt.Errorf("%w: pair_with_batch: %v", batcherr.ErrInfrastructure, err)
		}
		return nil
	})
}

// UnpairFromBatch clears batch_id for every row currently paired with
// batchID (used when a batch fails or expires and its requests need
// re-packing).
func (s *Store) UnpairFromBatch(ctx context.Context, batchID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE gpt_batch_requests SET batch_id = NULL, updated_at = now() WHERE batch_id = $1`, batchID)
	if err != nil {
		return fmt.Errorf("%w: unpair_from_batch: %v", batcherr.ErrInfrastructure, err)
	}
	return nil
}

// UnpairByIDs clears batch_id for specific rows so they re-enter the pending
// pool.
func (s *Store) UnpairByIDs(ctx context.Context, customIDs []string) error {
	return forEachChunk(customIDs, func(chunk []string) error {
		_, err := s.pool.Exec(ctx,
			`UPDATE gpt_batch_requests SET batch_id = NULL, updated_at = now() WHERE custom_id = ANY($1)`, chunk)
		if err != nil {
			return fmt.Errorf("%w: unpair_by_ids: %v", batcherr.ErrInfrastructure, err)
		}
		return nil
	})
}

// ListPendingManufacturers returns distinct manufacturer etld1s that have at
// least one request row with neither a response nor a batch pairing yet —
// candidates for the next packing pass.
func (s *Store) ListPendingManufacturers(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT mfg_etld1 FROM gpt_batch_requests
		 WHERE response_blob IS NULL AND batch_id IS NULL
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing pending manufacturers: %v", batcherr.ErrInfrastructure, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scanning pending manufacturer: %v", batcherr.ErrInfrastructure, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteByPrefix deletes every request row for (etld1, field) using an
// indexed range scan — custom_id >= prefix AND custom_id < prefix+￿ —
// rather than a pattern/regex scan, so the existing custom_id index
// remains usable.
func (s *Store) DeleteByPrefix(ctx context.Context, etld1, field string) error {
	prefix := customid.PrefixForField(etld1, field)
	_, err := s.pool.Exec(ctx,
		`DELETE FROM gpt_batch_requests WHERE custom_id >= $1 AND custom_id < $1 || E'￿'`, prefix)
	if err != nil {
		return fmt.Errorf("%w: delete_by_prefix: %v", batcherr.ErrInfrastructure, err)
	}
	return nil
}

func scanRequest(rows pgx.Rows) (models.GPTBatchRequest, error) {
	var (
		r           models.GPTBatchRequest
		requestBody []byte
		responseBlob []byte
		batchID     *uuid.UUID
	)
	if err := rows.Scan(&r.CustomID, &r.MfgETLD1, &r.Field, &requestBody, &responseBlob, &batchID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return r, fmt.Errorf("%w: scanning request row: %v", batcherr.ErrInfrastructure, err)
	}
	if err := json.Unmarshal(requestBody, &r.RequestBody); err != nil {
		return r, fmt.Errorf("%w: decoding request_body: %v", batcherr.ErrInfrastructure, err)
	}
	if responseBlob != nil {
		if err := json.Unmarshal(responseBlob, &r.ResponseBlob); err != nil {
			return r, fmt.Errorf("%w: decoding response_blob: %v", batcherr.ErrInfrastructure, err)
		}
	}
	r.BatchID = batchID
	return r, nil
}

// forEachChunk splits items into chunkSize-sized slices and calls fn on
// each, attempting every chunk regardless of earlier failures and returning
// a single aggregated *batcherr.BulkWriteError if any chunk failed.
func forEachChunk[T any](items []T, fn func([]T) error) error {
	if len(items) == 0 {
		return nil
	}

	total := (len(items) + chunkSize - 1) / chunkSize
	var errs []error

	for start := 0; start < len(items); start += chunkSize {
		end := min(start+chunkSize, len(items))
		if err := fn(items[start:end]); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return &batcherr.BulkWriteError{FailedChunks: len(errs), TotalChunks: total, Errs: errs}
	}
	return nil
}

func execBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch, expected int) error {
	br := pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < expected; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: batch statement %d: %v", batcherr.ErrInfrastructure, i, err)
		}
	}
	return nil
}
