package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/models"
	"github.com/promptledger/PromptLedger/internal/service"
)

// upsertPrompt registers template text for a full-mode prompt. Identical text reuses the existing version.
func (h *Handler) upsertPrompt(c *gin.Context) {
	var req upsertPromptRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.prompts.ResolveOrCreateVersion(c.Request.Context(), service.RegisterInput{
		Name:         c.Param("name"),
		TemplateText: req.TemplateText,
		Description:  req.Description,
		OwnerTeam:    req.OwnerTeam,
		CreatedBy:    req.CreatedBy,
		SetActive:    req.SetActive,
		Mode:         models.PromptModeFull,
	})
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, upsertPromptResponse{
		Prompt:         promptRef{ID: res.Prompt.ID, Name: res.Prompt.Name},
		Version:        versionRef{ID: res.Version.ID, VersionNumber: res.Version.VersionNumber},
		VersionChanged: res.VersionChanged,
	})
}

func (h *Handler) getPrompt(c *gin.Context) {
	details, err := h.prompts.GetPrompt(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, toPromptDTO(details.Prompt, details.ActiveVersion))
}

func (h *Handler) listVersions(c *gin.Context) {
	prompt, versions, err := h.prompts.ListVersions(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	out := make([]*versionDTO, 0, len(versions))
	for _, v := range versions {
		out = append(out, toVersionDTO(v, prompt))
	}
	c.JSON(http.StatusOK, gin.H{
		"prompt":   promptRef{ID: prompt.ID, Name: prompt.Name},
		"versions": out,
	})
}

func (h *Handler) listPrompts(c *gin.Context) {
	limit, offset, ok := parsePage(c)
	if !ok {
		return
	}
	mode := models.PromptMode(c.Query("mode"))

	prompts, err := h.prompts.ListPrompts(c.Request.Context(), mode, limit, offset)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	out := make([]promptDTO, 0, len(prompts))
	for _, p := range prompts {
		out = append(out, toPromptDTO(p, nil))
	}
	c.JSON(http.StatusOK, listPromptsResponse{Prompts: out, Limit: effectiveLimit(limit), Offset: offset})
}

// registerCode records prompts that live in application code as tracking-mode versions.
func (h *Handler) registerCode(c *gin.Context) {
	var req registerCodeRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Prompts) == 0 {
		badRequest(c, "prompts must not be empty")
		return
	}

	in := make([]service.CodePrompt, 0, len(req.Prompts))
	for _, p := range req.Prompts {
		in = append(in, service.CodePrompt{Name: p.Name, TemplateText: p.TemplateText, TemplateHash: p.TemplateHash})
	}
	regs, err := h.prompts.RegisterCode(c.Request.Context(), in)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}

	out := make([]codeRegistrationDTO, 0, len(regs))
	changed := 0
	for _, r := range regs {
		if r.ChangeDetected {
			changed++
		}
		out = append(out, codeRegistrationDTO{
			Name:            r.Name,
			Mode:            r.Mode,
			Version:         r.VersionNumber,
			ChangeDetected:  r.ChangeDetected,
			PreviousVersion: r.PreviousVersion,
		})
	}
	h.logger.Info("Code prompts registered", zap.Int("count", len(out)), zap.Int("changed", changed))
	c.JSON(http.StatusOK, gin.H{"registered": out})
}

// executePrompt runs a tracking-mode prompt by name, inline or queued per the mode field.
func (h *Handler) executePrompt(c *gin.Context) {
	var req executePromptRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Mode == "" {
		req.Mode = models.ModeSync
	}

	runReq := req.runRequest.toService()
	runReq.PromptName = c.Param("name")
	runReq.RequireMode = models.PromptModeTracking

	res, err := h.executions.Execute(c.Request.Context(), req.Mode, runReq)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(executionStatusCode(req.Mode, res.Replayed), toExecutionResultDTO(res))
}

func (h *Handler) promptHistory(c *gin.Context) {
	prompt, usage, err := h.prompts.History(c.Request.Context(), c.Param("name"))
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	out := make([]versionUsageDTO, 0, len(usage))
	for _, u := range usage {
		out = append(out, versionUsageDTO{
			versionDTO:     *toVersionDTO(&u.PromptVersion, prompt),
			ExecutionCount: u.ExecutionCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"prompt":  toPromptDTO(prompt, nil),
		"history": out,
	})
}
