package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/promptledger/PromptLedger/internal/models"
)

// handleServiceError maps service errors to a status code and aborts with an ErrorResponse.
func handleServiceError(c *gin.Context, err error, logger *zap.Logger) {
	var status int
	var resp models.ErrorResponse

	switch {
	case errors.Is(err, models.ErrModeMismatch):
		status = http.StatusBadRequest
		resp = models.ErrorResponse{Code: models.ErrCodeModeMismatch, Message: err.Error()}
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
		resp = models.ErrorResponse{Code: models.ErrCodeValidation, Message: err.Error()}
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
		resp = models.ErrorResponse{Code: models.ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusUnauthorized
		resp = models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: err.Error()}
	case errors.Is(err, models.ErrInvalidTransition):
		status = http.StatusConflict
		resp = models.ErrorResponse{Code: models.ErrCodeInvalidTransition, Message: err.Error()}
	case errors.Is(err, models.ErrAlreadyExists):
		status = http.StatusConflict
		resp = models.ErrorResponse{Code: models.ErrCodeConflict, Message: err.Error()}
	default:
		logger.Error("Unhandled internal error", zap.String("path", c.FullPath()), zap.Error(err))
		status = http.StatusInternalServerError
		resp = models.ErrorResponse{Code: models.ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{
		Code:    models.ErrCodeValidation,
		Message: message,
	})
}
