package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"loanflow/internal/rules"
	"loanflow/pkg/platform/sentinel"
)

// Document is one stored version of a named rule document.
type Document struct {
	Name          string
	Version       int
	ConfigVersion string
	Content       []byte
	Active        bool
	PublishedBy   string
	CreatedAt     time.Time
}

// PostgresSource keeps versioned rule documents in the rule_documents table.
// Exactly one version per name is active; Load serves it.
type PostgresSource struct {
	db   *sql.DB
	name string
}

// NewPostgresSource returns a source for the named document.
func NewPostgresSource(db *sql.DB, name string) *PostgresSource {
	return &PostgresSource{db: db, name: name}
}

// Load returns the active document content, or sentinel.ErrNotFound.
func (s *PostgresSource) Load(ctx context.Context) ([]byte, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT content
		FROM rule_documents
		WHERE name = $1 AND active = true
	`, s.name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rule document %s: %w", s.name, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load rule document: %w", err)
	}
	return content, nil
}

// Publish validates content, deactivates the current version and stores the
// document as the next active version in one transaction.
func (s *PostgresSource) Publish(ctx context.Context, content []byte, publishedBy string) (*Document, error) {
	rs, err := rules.Parse(content)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin publish: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE rule_documents
		SET active = false
		WHERE name = $1 AND active = true
	`, s.name); err != nil {
		return nil, fmt.Errorf("failed to deactivate old documents: %w", err)
	}

	doc := &Document{
		Name:          s.name,
		ConfigVersion: rs.Version,
		Content:       content,
		Active:        true,
		PublishedBy:   publishedBy,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO rule_documents (name, version, config_version, content, active, published_by, created_at)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, true, $4, NOW()
		FROM rule_documents
		WHERE name = $1
		RETURNING version, created_at
	`, s.name, rs.Version, content, publishedBy).Scan(&doc.Version, &doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save rule document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit publish: %w", err)
	}
	return doc, nil
}

// Activate makes an existing version the active one, for rollbacks.
func (s *PostgresSource) Activate(ctx context.Context, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin activate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE rule_documents SET active = false WHERE name = $1 AND active = true
	`, s.name); err != nil {
		return fmt.Errorf("failed to deactivate old documents: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE rule_documents SET active = true WHERE name = $1 AND version = $2
	`, s.name, version)
	if err != nil {
		return fmt.Errorf("failed to activate version %d: %w", version, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("rule document %s version %d: %w", s.name, version, sentinel.ErrNotFound)
	}
	return tx.Commit()
}

// Versions lists stored versions, newest first, without their content.
func (s *PostgresSource) Versions(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT version, config_version, active, published_by, created_at
		FROM rule_documents
		WHERE name = $1
		ORDER BY version DESC
	`, s.name)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d := Document{Name: s.name}
		if err := rows.Scan(&d.Version, &d.ConfigVersion, &d.Active, &d.PublishedBy, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule documents: %w", err)
	}
	return docs, nil
}
