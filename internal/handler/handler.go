// Package handler exposes the prompt, execution and model operations over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/models"
	"github.com/promptledger/PromptLedger/internal/service"
)

// PromptService is the part of *service.VersioningService the API uses.
type PromptService interface {
	ResolveOrCreateVersion(ctx context.Context, in service.RegisterInput) (*service.VersionResult, error)
	GetPrompt(ctx context.Context, name string) (*service.PromptDetails, error)
	ListPrompts(ctx context.Context, mode models.PromptMode, limit, offset int) ([]*models.Prompt, error)
	ListVersions(ctx context.Context, name string) (*models.Prompt, []*models.PromptVersion, error)
	History(ctx context.Context, name string) (*models.Prompt, []*models.VersionUsage, error)
	RegisterCode(ctx context.Context, prompts []service.CodePrompt) ([]*service.CodeRegistration, error)
}

// ExecutionService is the part of *service.ExecutionService the API uses.
type ExecutionService interface {
	Run(ctx context.Context, req service.RunRequest) (*service.ExecutionResult, error)
	Submit(ctx context.Context, req service.RunRequest) (*service.ExecutionResult, error)
	Execute(ctx context.Context, mode models.ExecutionMode, req service.RunRequest) (*service.ExecutionResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Execution, error)
	GetInput(ctx context.Context, id uuid.UUID) (*models.ExecutionInput, error)
	List(ctx context.Context, filter models.ExecutionFilter) ([]*models.Execution, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.Execution, error)
}

// ModelService lists the registered models.
type ModelService interface {
	List(ctx context.Context) ([]*models.Model, error)
}

// HealthCheck reports whether the storage backend is reachable.
type HealthCheck func(ctx context.Context) error

const healthTimeout = 2 * time.Second

type Handler struct {
	prompts    PromptService
	executions ExecutionService
	models     ModelService
	health     HealthCheck
	logger     *zap.Logger
}

func New(prompts PromptService, executions ExecutionService, modelSvc ModelService, health HealthCheck, logger *zap.Logger) *Handler {
	return &Handler{
		prompts:    prompts,
		executions: executions,
		models:     modelSvc,
		health:     health,
		logger:     logger.Named("Handler"),
	}
}

// RegisterRoutes mounts /health unauthenticated and everything under /v1 behind authMW.
func (h *Handler) RegisterRoutes(r gin.IRouter, authMW ...gin.HandlerFunc) {
	r.GET("/health", h.healthCheck)
	r.HEAD("/health", h.healthCheck)

	v1 := r.Group("/v1", authMW...)

	promptsGroup := v1.Group("/prompts")
	{
		promptsGroup.GET("", h.listPrompts)
		promptsGroup.POST("/register-code", h.registerCode)
		promptsGroup.PUT("/:name", h.upsertPrompt)
		promptsGroup.GET("/:name", h.getPrompt)
		promptsGroup.GET("/:name/versions", h.listVersions)
		promptsGroup.GET("/:name/history", h.promptHistory)
		promptsGroup.POST("/:name/execute", h.executePrompt)
	}

	executionsGroup := v1.Group("/executions")
	{
		executionsGroup.GET("", h.listExecutions)
		executionsGroup.POST("/run", h.runExecution)
		executionsGroup.POST("/submit", h.submitExecution)
		executionsGroup.GET("/:id", h.getExecution)
		executionsGroup.GET("/:id/input", h.getExecutionInput)
		executionsGroup.POST("/:id/cancel", h.cancelExecution)
	}

	v1.GET("/models", h.listModels)
}

func (h *Handler) healthCheck(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listModels(c *gin.Context) {
	list, err := h.models.List(c.Request.Context())
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	if list == nil {
		list = []*models.Model{}
	}
	c.JSON(http.StatusOK, gin.H{"models": list})
}

// --- Helpers ---

func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePage reads limit/offset query parameters; absent values are zero and clamped by the services.
func parsePage(c *gin.Context) (limit, offset int, ok bool) {
	var err error
	if raw := c.Query("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return 0, 0, false
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			badRequest(c, "offset must be a non-negative integer")
			return 0, 0, false
		}
	}
	return limit, offset, true
}

func effectiveLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 100:
		return 100
	}
	return limit
}

// bindJSON decodes the body keeping JSON numbers as json.Number, so template variables
// render exactly as the caller wrote them.
func bindJSON(c *gin.Context, dst any) bool {
	if err := decodeJSON(c.Request, dst); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func decodeJSON(req *http.Request, dst any) error {
	if req == nil || req.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(req.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return binding.Validator.ValidateStruct(dst)
}
