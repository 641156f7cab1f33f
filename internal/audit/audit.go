// Package audit records stage transitions and final outcomes of application
// evaluations. Entries are opaque to the sinks; persistence failures never
// change an evaluation's result.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind classifies an entry.
type Kind string

const (
	KindStageTransition Kind = "stage_transition"
	KindOutcome         Kind = "outcome"
)

// Entry is one audit record.
type Entry struct {
	ID            uuid.UUID      `json:"id"`
	ApplicationID string         `json:"application_id"`
	Kind          Kind           `json:"kind"`
	Stage         string         `json:"stage,omitempty"`
	Status        string         `json:"status"`
	Payload       map[string]any `json:"payload,omitempty"`
	RequestID     string         `json:"request_id,omitempty"`
	RecordedAt    time.Time      `json:"recorded_at"`
}

// NewEntry stamps a fresh id and time.
func NewEntry(applicationID string, kind Kind, stage, status string, payload map[string]any) Entry {
	return Entry{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		Kind:          kind,
		Stage:         stage,
		Status:        status,
		Payload:       payload,
		RecordedAt:    time.Now().UTC(),
	}
}

// Sink persists entries.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}

// Fanout writes every entry to all sinks and joins their errors.
type Fanout []Sink

func (f Fanout) Append(ctx context.Context, entry Entry) error {
	var errs []error
	for _, s := range f {
		if err := s.Append(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Append(context.Context, Entry) error { return nil }
