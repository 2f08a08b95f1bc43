package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionStatus_CanTransitionTo(t *testing.T) {
	all := []ExecutionStatus{StatusQueued, StatusRunning, StatusSucceeded, StatusFailed, StatusCanceled}

	allowed := map[[2]ExecutionStatus]bool{
		{StatusQueued, StatusRunning}:    true,
		{StatusQueued, StatusCanceled}:   true,
		{StatusRunning, StatusSucceeded}: true,
		{StatusRunning, StatusFailed}:    true,
		{StatusRunning, StatusCanceled}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]ExecutionStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestExecutionStatus_TerminalStatesAreAbsorbing(t *testing.T) {
	for _, s := range []ExecutionStatus{StatusSucceeded, StatusFailed, StatusCanceled} {
		assert.True(t, s.IsTerminal())
		for _, to := range []ExecutionStatus{StatusQueued, StatusRunning, StatusSucceeded, StatusFailed, StatusCanceled} {
			assert.False(t, s.CanTransitionTo(to), "%s must not move to %s", s, to)
		}
	}
	assert.False(t, StatusQueued.IsTerminal())
	assert.False(t, StatusRunning.IsTerminal())
}

func TestSourcesFor(t *testing.T) {
	assert.Equal(t, []ExecutionStatus{StatusQueued}, SourcesFor(StatusRunning))
	assert.Equal(t, []ExecutionStatus{StatusRunning}, SourcesFor(StatusSucceeded))
	assert.Equal(t, []ExecutionStatus{StatusQueued, StatusRunning}, SourcesFor(StatusCanceled))
	assert.Empty(t, SourcesFor(StatusQueued))
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, Checksum("Hello {{name}}"), Checksum("Hello {{name}}"))
	assert.NotEqual(t, Checksum("Hello {{name}}"), Checksum("Hello {{ name }}"))
	assert.Len(t, Checksum(""), 64)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Checksum(""))
}

func TestErrorsUnwrap(t *testing.T) {
	assert.True(t, errors.Is(&RenderError{Variable: "name"}, ErrValidation))
	assert.True(t, errors.Is(&TransitionError{From: StatusSucceeded, To: StatusFailed}, ErrInvalidTransition))
	assert.True(t, errors.Is(Validationf("too big: %d", 3), ErrValidation))
	assert.True(t, errors.Is(NotFoundf("prompt %q", "x"), ErrNotFound))
}
