package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"loanflow/internal/audit"
)

// Store appends entries to the audit_entries table. Appends are idempotent on
// the entry id.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	payload := entry.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	const query = `
		INSERT INTO audit_entries (
			id, application_id, kind, stage, status, payload, request_id, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.pool.Exec(ctx, query,
		entry.ID,
		entry.ApplicationID,
		string(entry.Kind),
		entry.Stage,
		entry.Status,
		raw,
		entry.RequestID,
		entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByApplication returns an application's entries oldest first.
func (s *Store) ListByApplication(ctx context.Context, applicationID string) ([]audit.Entry, error) {
	const query = `
		SELECT id, application_id::text, kind, stage, status, payload, request_id, recorded_at
		FROM audit_entries
		WHERE application_id = $1
		ORDER BY recorded_at, id
	`
	rows, err := s.pool.Query(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("scan audit entries: %w", err)
	}
	return entries, nil
}

func scanEntry(row pgx.CollectableRow) (audit.Entry, error) {
	var (
		e    audit.Entry
		id   uuid.UUID
		kind string
		raw  []byte
	)
	if err := row.Scan(&id, &e.ApplicationID, &kind, &e.Stage, &e.Status, &raw, &e.RequestID, &e.RecordedAt); err != nil {
		return audit.Entry{}, err
	}
	e.ID = id
	e.Kind = audit.Kind(kind)
	if err := json.Unmarshal(raw, &e.Payload); err != nil {
		return audit.Entry{}, fmt.Errorf("decode payload: %w", err)
	}
	return e, nil
}
