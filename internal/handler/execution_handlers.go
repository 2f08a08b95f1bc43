package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptledger/PromptLedger/internal/models"
)

// executionStatusCode is 202 for a freshly queued execution and 200 otherwise, replays included.
func executionStatusCode(mode models.ExecutionMode, replayed bool) int {
	if mode == models.ModeAsync && !replayed {
		return http.StatusAccepted
	}
	return http.StatusOK
}

func (h *Handler) runExecution(c *gin.Context) {
	var req runRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.executions.Run(c.Request.Context(), req.toService())
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, toExecutionResultDTO(res))
}

func (h *Handler) submitExecution(c *gin.Context) {
	var req runRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.executions.Submit(c.Request.Context(), req.toService())
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(executionStatusCode(models.ModeAsync, res.Replayed), toExecutionResultDTO(res))
}

func (h *Handler) getExecution(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	exec, err := h.executions.Get(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, toExecutionDTO(exec))
}

func (h *Handler) getExecutionInput(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	input, err := h.executions.GetInput(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, input)
}

func (h *Handler) listExecutions(c *gin.Context) {
	limit, offset, ok := parsePage(c)
	if !ok {
		return
	}
	filter := models.ExecutionFilter{
		PromptName:    c.Query("prompt_name"),
		Status:        models.ExecutionStatus(c.Query("status")),
		CorrelationID: c.Query("correlation_id"),
		Limit:         limit,
		Offset:        offset,
	}

	list, err := h.executions.List(c.Request.Context(), filter)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	out := make([]executionDTO, 0, len(list))
	for _, e := range list {
		out = append(out, toExecutionDTO(e))
	}
	c.JSON(http.StatusOK, listExecutionsResponse{Executions: out, Limit: effectiveLimit(limit), Offset: offset})
}

// cancelExecution answers 409 when the execution is already terminal.
func (h *Handler) cancelExecution(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	exec, err := h.executions.Cancel(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, toExecutionDTO(exec))
}
