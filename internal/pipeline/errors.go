package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrExecutionComplete is returned by Next once the execution has ended.
	ErrExecutionComplete = errors.New("pipeline: execution already complete")
	// ErrExecutionIncomplete is returned by Outcome before the execution ends.
	ErrExecutionIncomplete = errors.New("pipeline: execution not complete")
)

// CollaboratorError reports that an external collaborator (a bureau) failed.
// A handler returning it fails its stage; the pipeline still produces a
// rejection outcome.
type CollaboratorError struct {
	Collaborator string
	Message      string
	Err          error
}

func (e *CollaboratorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Collaborator, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Collaborator, e.Message)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// FatalError means the pipeline itself could not complete: a handler bug,
// a panic, or the caller's context ending between stages. It is distinct
// from a rejection.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
