package handler

import (
	"strings"

	"loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
)

// requiredSections must be present as objects in every application.
var requiredSections = []string{"applicant", "employment", "loan"}

// EvaluateRequest is the body of POST /v1/applications/evaluate.
type EvaluateRequest struct {
	ApplicationID string         `json:"application_id"`
	Application   map[string]any `json:"application"`

	parsedID domain.ApplicationID
}

// Validate checks the envelope; field-level checks belong to the rules.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Application) == 0 {
		return dErrors.New(dErrors.CodeValidation, "application is required")
	}
	for _, section := range requiredSections {
		if _, ok := r.Application[section].(map[string]any); !ok {
			return dErrors.New(dErrors.CodeValidation, "application."+section+" must be an object")
		}
	}

	r.ApplicationID = strings.TrimSpace(r.ApplicationID)
	if r.ApplicationID == "" {
		r.parsedID = domain.NewApplicationID()
		return nil
	}
	id, err := domain.ParseApplicationID(r.ApplicationID)
	if err != nil {
		return err
	}
	r.parsedID = id
	return nil
}

// ID returns the parsed or generated application id.
func (r *EvaluateRequest) ID() domain.ApplicationID {
	return r.parsedID
}

// AssessRequest is the body of POST /v1/assessments: a record run through
// the rule engine alone, without bureau calls.
type AssessRequest struct {
	Record     map[string]any `json:"record"`
	Categories []string       `json:"categories,omitempty"`
}

func (r *AssessRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Record) == 0 {
		return dErrors.New(dErrors.CodeValidation, "record is required")
	}
	if len(r.Categories) > 32 {
		return dErrors.New(dErrors.CodeValidation, "at most 32 categories may be requested")
	}
	for i, c := range r.Categories {
		r.Categories[i] = strings.TrimSpace(c)
		if r.Categories[i] == "" {
			return dErrors.New(dErrors.CodeValidation, "category names must not be empty")
		}
	}
	return nil
}
