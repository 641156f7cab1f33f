// Package pipeline runs an application through an ordered list of stages.
// Each stage sees an immutable snapshot of the application record plus the
// enrichment produced by earlier stages, and a stage only runs when every
// earlier stage passed.
package pipeline

import (
	"time"

	"loanflow/pkg/record"
)

// StageStatus is the lifecycle state of one stage within an execution.
type StageStatus string

const (
	StatusPending    StageStatus = "pending"
	StatusInProgress StageStatus = "in_progress"
	StatusCompleted  StageStatus = "completed"
	StatusFailed     StageStatus = "failed"
)

// Decision is the terminal verdict.
type Decision string

const (
	DecisionApproved            Decision = "approved"
	DecisionConditionalApproval Decision = "conditionally_approved"
	DecisionRejected            Decision = "rejected"
)

// Snapshot is the read-only view handed to a stage handler. Record is a
// private deep copy; handlers may read it freely and must return changes as
// enrichment instead of mutating it.
type Snapshot struct {
	ApplicationID string
	Record        map[string]any
	Previous      []StageResult
}

// Lookup resolves a dotted path in the record.
func (s Snapshot) Lookup(path string) (any, bool) {
	return record.Lookup(s.Record, path)
}

// StageReport is what a handler returns.
type StageReport struct {
	Passed  bool
	Payload map[string]any
	// Enrichment is deep-merged into the record seen by later stages.
	Enrichment map[string]any
	Reasons    []string
	Flags      []string
	// Conditions attached to an approval, e.g. documents still required.
	Conditions []string
	// Terms is set by the stage that sizes the loan.
	Terms *LoanTerms
}

// StageResult is the recorded outcome of one stage.
type StageResult struct {
	Stage       string         `json:"stage"`
	Status      StageStatus    `json:"status"`
	Passed      bool           `json:"passed"`
	Payload     map[string]any `json:"payload,omitempty"`
	Reasons     []string       `json:"reasons,omitempty"`
	Flags       []string       `json:"flags,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Recommendation tells a rejected applicant what to fix.
type Recommendation struct {
	Field    string `json:"field"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Reason   string `json:"reason"`
}

// Outcome is the terminal result of an execution.
type Outcome struct {
	ApplicationID   string           `json:"application_id"`
	Approved        bool             `json:"approved"`
	Decision        Decision         `json:"decision"`
	Terms           *LoanTerms       `json:"terms,omitempty"`
	NextSteps       []string         `json:"next_steps,omitempty"`
	FailingStage    string           `json:"failing_stage,omitempty"`
	Reason          string           `json:"reason,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Flags           []string         `json:"flags,omitempty"`
	Stages          []StageResult    `json:"stages"`
	ConfigVersion   string           `json:"config_version,omitempty"`
}
