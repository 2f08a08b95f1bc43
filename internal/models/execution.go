package models

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the lifecycle state of an execution.
type ExecutionStatus string

const (
	StatusQueued    ExecutionStatus = "queued"
	StatusRunning   ExecutionStatus = "running"
	StatusSucceeded ExecutionStatus = "succeeded"
	StatusFailed    ExecutionStatus = "failed"
	StatusCanceled  ExecutionStatus = "canceled"
)

// allowedTransitions lists every legal forward move. Terminal states have no entry.
var allowedTransitions = map[ExecutionStatus][]ExecutionStatus{
	StatusQueued:  {StatusRunning, StatusCanceled},
	StatusRunning: {StatusSucceeded, StatusFailed, StatusCanceled},
}

// IsTerminal reports whether no further transition is permitted.
func (s ExecutionStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled
}

func (s ExecutionStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether s -> next is a legal move.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourcesFor returns the statuses from which next may be entered.
func SourcesFor(next ExecutionStatus) []ExecutionStatus {
	var from []ExecutionStatus
	for _, s := range []ExecutionStatus{StatusQueued, StatusRunning} {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}

// ExecutionMode selects inline or queued dispatch.
type ExecutionMode string

const (
	ModeSync  ExecutionMode = "sync"
	ModeAsync ExecutionMode = "async"
)

func (m ExecutionMode) Valid() bool {
	return m == ModeSync || m == ModeAsync
}

// GenerationParams are optional knobs forwarded to the provider.
type GenerationParams struct {
	Temperature       *float64 `db:"temperature" json:"temperature,omitempty"`
	TopK              *int     `db:"top_k" json:"top_k,omitempty"`
	TopP              *float64 `db:"top_p" json:"top_p,omitempty"`
	RepetitionPenalty *float64 `db:"repetition_penalty" json:"repetition_penalty,omitempty"`
	MaxNewTokens      *int     `db:"max_new_tokens" json:"max_new_tokens,omitempty"`
}

// Execution is one render-and-run of a prompt version.
type Execution struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	PromptID          uuid.UUID       `db:"prompt_id" json:"prompt_id"`
	VersionID         uuid.UUID       `db:"version_id" json:"version_id"`
	ModelID           uuid.UUID       `db:"model_id" json:"model_id"`
	ExecutionMode     ExecutionMode   `db:"execution_mode" json:"execution_mode"`
	Status            ExecutionStatus `db:"status" json:"status"`
	Environment       string          `db:"environment" json:"environment"`
	CorrelationID     *string         `db:"correlation_id" json:"correlation_id,omitempty"`
	IdempotencyKey    *string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	RenderedPrompt    string          `db:"rendered_prompt" json:"rendered_prompt"`
	ResponseText      *string         `db:"response_text" json:"response_text,omitempty"`
	PromptTokens      *int            `db:"prompt_tokens" json:"prompt_tokens,omitempty"`
	ResponseTokens    *int            `db:"response_tokens" json:"response_tokens,omitempty"`
	LatencyMs         *int            `db:"latency_ms" json:"latency_ms,omitempty"`
	ProviderRequestID *string         `db:"provider_request_id" json:"provider_request_id,omitempty"`
	ErrorType         *string         `db:"error_type" json:"error_type,omitempty"`
	ErrorMessage      *string         `db:"error_message" json:"error_message,omitempty"`
	GenerationParams
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// ExecutionInput holds the variable bindings an execution was rendered with.
type ExecutionInput struct {
	ExecutionID uuid.UUID      `db:"execution_id" json:"execution_id"`
	Variables   map[string]any `db:"variables" json:"variables"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

// Transition describes a conditional status update. Nil fields are left untouched.
type Transition struct {
	To                ExecutionStatus
	StartedAt         *time.Time
	CompletedAt       *time.Time
	ResponseText      *string
	PromptTokens      *int
	ResponseTokens    *int
	LatencyMs         *int
	ProviderRequestID *string
	ErrorType         *string
	ErrorMessage      *string
}

// ExecutionFilter narrows execution listings.
type ExecutionFilter struct {
	PromptName    string
	Status        ExecutionStatus
	CorrelationID string
	Limit         int
	Offset        int
}
