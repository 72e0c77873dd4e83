package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/syncbridge/internal/core/domain"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
)

// syncResultStore implements driven.SyncResultStore.
type syncResultStore struct {
	store *Store
}

var _ driven.SyncResultStore = (*syncResultStore)(nil)

const resultColumns = `integration_id, server_id, success, records_processed, records_created,
	records_updated, records_deleted, errors, duration_ns, timestamp`

// Save stores result, replacing the integration's previous one.
func (s *syncResultStore) Save(ctx context.Context, r domain.SyncResult) error {
	errs := r.Errors
	if errs == nil {
		errs = []string{}
	}
	errorsJSON, err := json.Marshal(errs)
	if err != nil {
		return fmt.Errorf("marshalling errors: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sync_results (`+resultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(integration_id) DO UPDATE SET
			server_id = excluded.server_id,
			success = excluded.success,
			records_processed = excluded.records_processed,
			records_created = excluded.records_created,
			records_updated = excluded.records_updated,
			records_deleted = excluded.records_deleted,
			errors = excluded.errors,
			duration_ns = excluded.duration_ns,
			timestamp = excluded.timestamp
	`, r.IntegrationID, r.ServerID, boolToInt(r.Success), r.RecordsProcessed, r.RecordsCreated,
		r.RecordsUpdated, r.RecordsDeleted, string(errorsJSON), int64(r.Duration),
		r.Timestamp.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("saving sync result: %w", err)
	}
	return nil
}

// Get retrieves the last result for an integration.
func (s *syncResultStore) Get(ctx context.Context, integrationID string) (*domain.SyncResult, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM sync_results WHERE integration_id = ?`, integrationID)
	r, err := scanSyncResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// List returns the last result of every integration, sorted by integration ID.
func (s *syncResultStore) List(ctx context.Context) ([]domain.SyncResult, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM sync_results ORDER BY integration_id`)
	if err != nil {
		return nil, fmt.Errorf("querying sync results: %w", err)
	}
	defer rows.Close()

	results := []domain.SyncResult{}
	for rows.Next() {
		r, err := scanSyncResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync results: %w", err)
	}
	return results, nil
}

// Clear removes all results.
func (s *syncResultStore) Clear(ctx context.Context) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM sync_results"); err != nil {
		return fmt.Errorf("clearing sync results: %w", err)
	}
	return nil
}

func scanSyncResult(row scanner) (*domain.SyncResult, error) {
	var r domain.SyncResult
	var success int
	var errorsJSON string
	var durationNS int64
	var timestamp sql.NullString

	if err := row.Scan(&r.IntegrationID, &r.ServerID, &success, &r.RecordsProcessed, &r.RecordsCreated,
		&r.RecordsUpdated, &r.RecordsDeleted, &errorsJSON, &durationNS, &timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning sync result: %w", err)
	}

	if err := json.Unmarshal([]byte(errorsJSON), &r.Errors); err != nil {
		return nil, fmt.Errorf("unmarshalling errors: %w", err)
	}
	r.Success = success == 1
	r.Duration = time.Duration(durationNS)
	r.Timestamp = parseTime(timestamp)
	return &r, nil
}
