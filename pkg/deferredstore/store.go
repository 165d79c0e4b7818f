// Package deferredstore manages the Manufacturer and DeferredManufacturer
// documents the orchestrator reads and materializes fields into.
package deferredstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudokn/gptbatch/pkg/batcherr"
	"github.com/sudokn/gptbatch/pkg/models"
)

// Store is the deferred manufacturer store's database-backed implementation.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps pool as a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// GetManufacturer fetches the finalized document for etld1.
func (s *Store) GetManufacturer(ctx context.Context, etld1 string) (*models.Manufacturer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT etld1, source_text, data, created_at, updated_at FROM manufacturers WHERE etld1 = $1`, etld1)

	var (
		m    models.Manufacturer
		data []byte
	)
	if err := row.Scan(&m.ETLD1, &m.SourceText, &data, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: fetching manufacturer %s: %v", batcherr.ErrInfrastructure, etld1, err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decoding manufacturer %s: %v", batcherr.ErrInfrastructure, etld1, err)
	}
	m.ETLD1 = etld1
	return &m, nil
}

// UpsertManufacturerField merges a single materialized field value into the
// manufacturer's finalized document.
func (s *Store) UpsertManufacturerField(ctx context.Context, etld1 string, field string, value any) error {
	patch, err := json.Marshal(map[string]any{field: value})
	if err != nil {
		return fmt.Errorf("marshaling field patch: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE manufacturers SET data = data || $1::jsonb, updated_at = now() WHERE etld1 = $2`,
		patch, etld1)
	if err != nil {
		return fmt.Errorf("%w: upserting manufacturer field %s/%s: %v", batcherr.ErrInfrastructure, etld1, field, err)
	}
	return nil
}

// GetDeferred fetches the in-flight extraction state for etld1.
func (s *Store) GetDeferred(ctx context.Context, etld1 string) (*models.DeferredManufacturer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT etld1, fields, created_at, updated_at FROM deferred_manufacturers WHERE etld1 = $1`, etld1)

	var (
		d      models.DeferredManufacturer
		fields []byte
	)
	if err := row.Scan(&d.ETLD1, &fields, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return &models.DeferredManufacturer{ETLD1: etld1, Fields: map[string]models.FieldState{}}, nil
		}
		return nil, fmt.Errorf("%w: fetching deferred manufacturer %s: %v", batcherr.ErrInfrastructure, etld1, err)
	}
	if err := json.Unmarshal(fields, &d.Fields); err != nil {
		return nil, fmt.Errorf("%w: decoding deferred fields %s: %v", batcherr.ErrInfrastructure, etld1, err)
	}
	return &d, nil
}

// SetFieldState upserts a single field's sub-document within etld1's
// deferred manufacturer row.
func (s *Store) SetFieldState(ctx context.Context, etld1, field string, state models.FieldState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling field state: %w", err)
	}

	patch, err := json.Marshal(map[string]json.RawMessage{field: stateJSON})
	if err != nil {
		return fmt.Errorf("marshaling field patch: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO deferred_manufacturers (etld1, fields) VALUES ($1, $2)
		 ON CONFLICT (etld1) DO UPDATE
		   SET fields = deferred_manufacturers.fields || $2::jsonb, updated_at = now()`,
		etld1, patch)
	if err != nil {
		return fmt.Errorf("%w: setting field state %s/%s: %v", batcherr.ErrInfrastructure, etld1, field, err)
	}
	return nil
}

// ListUnstartedManufacturers returns up to limit etld1s that have no
// deferred-manufacturer row at all yet — manufacturers the orchestrator has
// never been invoked for. Once a manufacturer has deferred state, further
// advancement is driven by the batch station as its requests complete, not
// by this bootstrap sweep.
func (s *Store) ListUnstartedManufacturers(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.etld1 FROM manufacturers m
		 LEFT JOIN deferred_manufacturers d ON d.etld1 = m.etld1
		 WHERE d.etld1 IS NULL
		 ORDER BY m.created_at ASC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing unstarted manufacturers: %v", batcherr.ErrInfrastructure, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scanning unstarted manufacturer: %v", batcherr.ErrInfrastructure, err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListPendingETLD1s returns manufacturer etld1s that have source text but no
// finalized value and no in-flight deferred state for field — candidates
// the orchestrator should initiate extraction for.
func (s *Store) ListPendingETLD1s(ctx context.Context, field string, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT m.etld1 FROM manufacturers m
		 LEFT JOIN deferred_manufacturers d ON d.etld1 = m.etld1
		 WHERE NOT (m.data ? $1)
		   AND (d.fields IS NULL OR NOT (d.fields ? $1))
		 LIMIT $2`, field, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing pending manufacturers for %s: %v", batcherr.ErrInfrastructure, field, err)
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
