package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// PromptMode separates API-managed prompts from prompts tracked out of application code.
type PromptMode string

const (
	PromptModeFull     PromptMode = "full"
	PromptModeTracking PromptMode = "tracking"
)

func (m PromptMode) Valid() bool {
	return m == PromptModeFull || m == PromptModeTracking
}

// Prompt is a named template family. ActiveVersionID points into prompt_versions
// without owning the version rows.
type Prompt struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	Description     *string    `db:"description" json:"description,omitempty"`
	OwnerTeam       *string    `db:"owner_team" json:"owner_team,omitempty"`
	Mode            PromptMode `db:"mode" json:"mode"`
	ActiveVersionID *uuid.UUID `db:"active_version_id" json:"active_version_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// PromptVersion is an immutable snapshot of template text.
type PromptVersion struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PromptID      uuid.UUID `db:"prompt_id" json:"prompt_id"`
	VersionNumber int       `db:"version_number" json:"version_number"`
	TemplateText  string    `db:"template_text" json:"template_text"`
	ChecksumHash  string    `db:"checksum_hash" json:"checksum_hash"`
	CreatedBy     *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// VersionUsage is a version together with the number of executions that used it.
type VersionUsage struct {
	PromptVersion
	ExecutionCount int64 `db:"execution_count" json:"execution_count"`
}

// Checksum returns the hex SHA-256 digest of the template text.
func Checksum(templateText string) string {
	sum := sha256.Sum256([]byte(templateText))
	return hex.EncodeToString(sum[:])
}
