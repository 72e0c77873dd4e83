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

// integrationStore implements driven.IntegrationStore.
type integrationStore struct {
	store *Store
}

var _ driven.IntegrationStore = (*integrationStore)(nil)

const integrationColumns = `id, server_id, name, description, enabled, auto_sync,
	sync_interval_ms, config, mapping, last_sync`

// Save stores or updates an integration. Updates keep the original
// registration position.
func (s *integrationStore) Save(ctx context.Context, in domain.Integration) error {
	configJSON, err := json.Marshal(in.Config)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	mappingJSON, err := json.Marshal(in.Mapping)
	if err != nil {
		return fmt.Errorf("marshalling mapping: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO integrations (`+integrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			server_id = excluded.server_id,
			name = excluded.name,
			description = excluded.description,
			enabled = excluded.enabled,
			auto_sync = excluded.auto_sync,
			sync_interval_ms = excluded.sync_interval_ms,
			config = excluded.config,
			mapping = excluded.mapping,
			last_sync = excluded.last_sync
	`, in.ID, in.ServerID, in.Name, nullString(in.Description),
		boolToInt(in.Enabled), boolToInt(in.AutoSync), in.SyncInterval.Milliseconds(),
		string(configJSON), string(mappingJSON), formatTime(in.LastSync))
	if err != nil {
		return fmt.Errorf("saving integration: %w", err)
	}
	return nil
}

// Get retrieves an integration by ID.
func (s *integrationStore) Get(ctx context.Context, id string) (*domain.Integration, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+integrationColumns+` FROM integrations WHERE id = ?`, id)
	in, err := scanIntegration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

// Delete removes an integration.
func (s *integrationStore) Delete(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM integrations WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting integration: %w", err)
	}
	return nil
}

// List returns all integrations in registration order.
func (s *integrationStore) List(ctx context.Context) ([]domain.Integration, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+integrationColumns+` FROM integrations ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	defer rows.Close()

	integrations := []domain.Integration{}
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		integrations = append(integrations, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating integrations: %w", err)
	}
	return integrations, nil
}

// SetLastSync records a successful sync time.
func (s *integrationStore) SetLastSync(ctx context.Context, id string, at time.Time) error {
	res, err := s.store.db.ExecContext(ctx, "UPDATE integrations SET last_sync = ? WHERE id = ?", formatTime(at), id)
	if err != nil {
		return fmt.Errorf("updating last sync: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating last sync: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIntegration(row scanner) (*domain.Integration, error) {
	var in domain.Integration
	var description, lastSync sql.NullString
	var enabled, autoSync int
	var intervalMS int64
	var configJSON, mappingJSON string

	if err := row.Scan(&in.ID, &in.ServerID, &in.Name, &description, &enabled, &autoSync,
		&intervalMS, &configJSON, &mappingJSON, &lastSync); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning integration: %w", err)
	}

	if err := json.Unmarshal([]byte(configJSON), &in.Config); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := json.Unmarshal([]byte(mappingJSON), &in.Mapping); err != nil {
		return nil, fmt.Errorf("unmarshalling mapping: %w", err)
	}

	in.Description = description.String
	in.Enabled = enabled == 1
	in.AutoSync = autoSync == 1
	in.SyncInterval = time.Duration(intervalMS) * time.Millisecond
	in.LastSync = parseTime(lastSync)
	return &in, nil
}
