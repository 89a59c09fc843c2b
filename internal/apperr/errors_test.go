package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateConflictError(t *testing.T) {
	err := fmt.Errorf("approve: %w", &StateConflictError{
		ContractID: "c-1",
		Current:    "SIGNED",
		Required:   []string{"PENDING_APPROVAL"},
	})

	assert.ErrorIs(t, err, ErrStateConflict)
	assert.NotErrorIs(t, err, ErrNotFound)

	var sc *StateConflictError
	assert.True(t, errors.As(err, &sc))
	assert.Equal(t, "SIGNED", sc.Current)
	assert.Contains(t, err.Error(), "contract c-1 is SIGNED, required PENDING_APPROVAL")
}

func TestPipelineError(t *testing.T) {
	cause := errors.New("boom")
	err := &PipelineError{Step: "overlay", Err: cause}

	assert.ErrorIs(t, err, ErrPipeline)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "pipeline step overlay: boom", err.Error())
}

func TestPipelineErrorKeepsDependencyKind(t *testing.T) {
	err := &PipelineError{Step: "merge", Err: DependencyUnavailable("master document", errors.New("missing"))}

	assert.ErrorIs(t, err, ErrPipeline)
	assert.ErrorIs(t, err, ErrDependencyUnavailable)
}

func TestConstructors(t *testing.T) {
	assert.ErrorIs(t, NotFound("contract", "x"), ErrNotFound)
	assert.ErrorIs(t, Validation("client name is required"), ErrValidation)
	assert.ErrorIs(t, Unauthorized("not the creator"), ErrUnauthorized)
	assert.ErrorIs(t, DependencyUnavailable("credential", nil), ErrDependencyUnavailable)
	assert.Equal(t, "client name is required: validation error", Validation("client name is required").Error())
}
