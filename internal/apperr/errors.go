package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy of the contract core. Callers match with errors.Is.
var (
	ErrNotFound              = errors.New("not found")
	ErrStateConflict         = errors.New("state conflict")
	ErrValidation            = errors.New("validation error")
	ErrVerificationFailed    = errors.New("verification failed")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrPipeline              = errors.New("pipeline error")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// StateConflictError reports a transition attempted from the wrong status.
type StateConflictError struct {
	ContractID string
	Current    string
	Required   []string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("contract %s is %s, required %s", e.ContractID, e.Current, strings.Join(e.Required, " or "))
}

func (e *StateConflictError) Is(target error) bool { return target == ErrStateConflict }

// PipelineError wraps the failure of one assembly step.
type PipelineError struct {
	Step string
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline step %s: %v", e.Step, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func (e *PipelineError) Is(target error) bool { return target == ErrPipeline }

// NotFound wraps ErrNotFound with the missing resource.
func NotFound(resource, id string) error {
	return fmt.Errorf("%s %q: %w", resource, id, ErrNotFound)
}

// Validation wraps ErrValidation with a user-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}

// Unauthorized wraps ErrUnauthorized with the reason.
func Unauthorized(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrUnauthorized)
}

// DependencyUnavailable wraps ErrDependencyUnavailable with the cause.
func DependencyUnavailable(what string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", what, ErrDependencyUnavailable)
	}
	return fmt.Errorf("%s: %w: %v", what, ErrDependencyUnavailable, cause)
}
