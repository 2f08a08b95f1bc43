package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/promptledger/PromptLedger/internal/models"
	"github.com/promptledger/PromptLedger/internal/render"
	"github.com/promptledger/PromptLedger/internal/service"
)

// --- Requests ---

type upsertPromptRequest struct {
	TemplateText string  `json:"template_text"`
	Description  *string `json:"description"`
	OwnerTeam    *string `json:"owner_team"`
	CreatedBy    *string `json:"created_by"`
	SetActive    bool    `json:"set_active"`
}

type codePromptRequest struct {
	Name         string  `json:"name"`
	TemplateText string  `json:"template_text"`
	TemplateHash *string `json:"template_hash"`
}

type registerCodeRequest struct {
	Prompts []codePromptRequest `json:"prompts"`
}

type modelRef struct {
	Provider  string `json:"provider"`
	ModelName string `json:"model_name"`
}

type runRequest struct {
	PromptName     string                  `json:"prompt_name"`
	VersionNumber  *int                    `json:"version_number"`
	VersionID      *uuid.UUID              `json:"version_id"`
	Variables      map[string]any          `json:"variables"`
	Model          modelRef                `json:"model"`
	Params         models.GenerationParams `json:"params"`
	Environment    string                  `json:"environment"`
	CorrelationID  *string                 `json:"correlation_id"`
	IdempotencyKey *string                 `json:"idempotency_key"`
}

type executePromptRequest struct {
	runRequest
	Mode models.ExecutionMode `json:"mode"`
}

func (r runRequest) toService() service.RunRequest {
	return service.RunRequest{
		PromptName:     r.PromptName,
		Version:        service.VersionSelector{Number: r.VersionNumber, ID: r.VersionID},
		Variables:      r.Variables,
		Provider:       r.Model.Provider,
		ModelName:      r.Model.ModelName,
		Params:         r.Params,
		Environment:    r.Environment,
		CorrelationID:  r.CorrelationID,
		IdempotencyKey: r.IdempotencyKey,
	}
}

// --- Responses ---

type promptRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type versionRef struct {
	ID            uuid.UUID `json:"id"`
	VersionNumber int       `json:"version_number"`
}

type upsertPromptResponse struct {
	Prompt         promptRef  `json:"prompt"`
	Version        versionRef `json:"version"`
	VersionChanged bool       `json:"version_changed"`
}

type versionDTO struct {
	ID            uuid.UUID `json:"id"`
	VersionNumber int       `json:"version_number"`
	TemplateText  string    `json:"template_text"`
	ChecksumHash  string    `json:"checksum_hash"`
	CreatedBy     *string   `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	IsActive      bool      `json:"is_active"`
	// Variables are the placeholder names a run must bind.
	Variables []string `json:"variables"`
}

type versionUsageDTO struct {
	versionDTO
	ExecutionCount int64 `json:"execution_count"`
}

type promptDTO struct {
	ID            uuid.UUID         `json:"id"`
	Name          string            `json:"name"`
	Description   *string           `json:"description,omitempty"`
	OwnerTeam     *string           `json:"owner_team,omitempty"`
	Mode          models.PromptMode `json:"mode"`
	ActiveVersion *versionDTO       `json:"active_version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

type listPromptsResponse struct {
	Prompts []promptDTO `json:"prompts"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
}

type codeRegistrationDTO struct {
	Name            string            `json:"name"`
	Mode            models.PromptMode `json:"mode"`
	Version         int               `json:"version"`
	ChangeDetected  bool              `json:"change_detected"`
	PreviousVersion *int              `json:"previous_version"`
}

type telemetryDTO struct {
	PromptTokens   *int `json:"prompt_tokens"`
	ResponseTokens *int `json:"response_tokens"`
	LatencyMs      *int `json:"latency_ms"`
}

type resultDTO struct {
	ResponseText      *string      `json:"response_text"`
	Telemetry         telemetryDTO `json:"telemetry"`
	ProviderRequestID *string      `json:"provider_request_id,omitempty"`
	ErrorType         *string      `json:"error_type"`
	ErrorMessage      *string      `json:"error_message"`
}

type executionDTO struct {
	ExecutionID    uuid.UUID               `json:"execution_id"`
	Status         models.ExecutionStatus  `json:"status"`
	Mode           models.ExecutionMode    `json:"execution_mode"`
	PromptID       uuid.UUID               `json:"prompt_id"`
	VersionID      uuid.UUID               `json:"version_id"`
	ModelID        uuid.UUID               `json:"model_id"`
	Prompt         *promptRef              `json:"prompt,omitempty"`
	Version        *versionRef             `json:"version,omitempty"`
	Environment    string                  `json:"environment"`
	CorrelationID  *string                 `json:"correlation_id,omitempty"`
	IdempotencyKey *string                 `json:"idempotency_key,omitempty"`
	RenderedPrompt string                  `json:"rendered_prompt"`
	Params         models.GenerationParams `json:"params"`
	Replayed       bool                    `json:"replayed"`
	Result         *resultDTO              `json:"result,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	StartedAt      *time.Time              `json:"started_at,omitempty"`
	CompletedAt    *time.Time              `json:"completed_at,omitempty"`
}

type listExecutionsResponse struct {
	Executions []executionDTO `json:"executions"`
	Limit      int            `json:"limit"`
	Offset     int            `json:"offset"`
}

// --- Mapping ---

func toVersionDTO(v *models.PromptVersion, prompt *models.Prompt) *versionDTO {
	if v == nil {
		return nil
	}
	return &versionDTO{
		ID:            v.ID,
		VersionNumber: v.VersionNumber,
		TemplateText:  v.TemplateText,
		ChecksumHash:  v.ChecksumHash,
		CreatedBy:     v.CreatedBy,
		CreatedAt:     v.CreatedAt,
		IsActive:      prompt != nil && prompt.ActiveVersionID != nil && *prompt.ActiveVersionID == v.ID,
		Variables:     templateVariables(v.TemplateText),
	}
}

func templateVariables(text string) []string {
	names, err := render.Variables(text)
	if err != nil || names == nil {
		return []string{}
	}
	return names
}

func toPromptDTO(p *models.Prompt, active *models.PromptVersion) promptDTO {
	return promptDTO{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		OwnerTeam:     p.OwnerTeam,
		Mode:          p.Mode,
		ActiveVersion: toVersionDTO(active, p),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// toExecutionDTO includes the result block only once the execution is terminal.
func toExecutionDTO(e *models.Execution) executionDTO {
	dto := executionDTO{
		ExecutionID:    e.ID,
		Status:         e.Status,
		Mode:           e.ExecutionMode,
		PromptID:       e.PromptID,
		VersionID:      e.VersionID,
		ModelID:        e.ModelID,
		Environment:    e.Environment,
		CorrelationID:  e.CorrelationID,
		IdempotencyKey: e.IdempotencyKey,
		RenderedPrompt: e.RenderedPrompt,
		Params:         e.GenerationParams,
		CreatedAt:      e.CreatedAt,
		StartedAt:      e.StartedAt,
		CompletedAt:    e.CompletedAt,
	}
	if e.Status.IsTerminal() {
		dto.Result = &resultDTO{
			ResponseText: e.ResponseText,
			Telemetry: telemetryDTO{
				PromptTokens:   e.PromptTokens,
				ResponseTokens: e.ResponseTokens,
				LatencyMs:      e.LatencyMs,
			},
			ProviderRequestID: e.ProviderRequestID,
			ErrorType:         e.ErrorType,
			ErrorMessage:      e.ErrorMessage,
		}
	}
	return dto
}

func toExecutionResultDTO(res *service.ExecutionResult) executionDTO {
	dto := toExecutionDTO(res.Execution)
	dto.Replayed = res.Replayed
	if res.Prompt != nil {
		dto.Prompt = &promptRef{ID: res.Prompt.ID, Name: res.Prompt.Name}
	}
	if res.Version != nil {
		dto.Version = &versionRef{ID: res.Version.ID, VersionNumber: res.Version.VersionNumber}
	}
	return dto
}
