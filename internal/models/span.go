package models

import (
	"time"

	"github.com/google/uuid"
)

// Span is the persisted trace record of one execution dispatch.
type Span struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	TraceID        string         `db:"trace_id" json:"trace_id"`
	SpanID         string         `db:"span_id" json:"span_id"`
	ParentSpanID   *string        `db:"parent_span_id" json:"parent_span_id,omitempty"`
	ExecutionID    uuid.UUID      `db:"execution_id" json:"execution_id"`
	Name           string         `db:"name" json:"name"`
	Kind           string         `db:"kind" json:"kind"`
	StartTime      time.Time      `db:"start_time" json:"start_time"`
	EndTime        time.Time      `db:"end_time" json:"end_time"`
	DurationMs     int            `db:"duration_ms" json:"duration_ms"`
	Status         string         `db:"status" json:"status"`
	Model          *string        `db:"model" json:"model,omitempty"`
	PromptTokens   *int           `db:"prompt_tokens" json:"prompt_tokens,omitempty"`
	ResponseTokens *int           `db:"response_tokens" json:"response_tokens,omitempty"`
	Data           map[string]any `db:"data" json:"data,omitempty"`
}
