package models

import (
	"time"

	"github.com/google/uuid"
)

// Model is a resolvable (provider, model name) pair.
type Model struct {
	ID                uuid.UUID `db:"id" json:"id"`
	Provider          string    `db:"provider" json:"provider" yaml:"provider"`
	ModelName         string    `db:"model_name" json:"model_name" yaml:"model_name"`
	MaxTokens         *int      `db:"max_tokens" json:"max_tokens,omitempty" yaml:"max_tokens"`
	SupportsStreaming bool      `db:"supports_streaming" json:"supports_streaming" yaml:"supports_streaming"`
	CreatedAt         time.Time `db:"created_at" json:"created_at" yaml:"-"`
}
