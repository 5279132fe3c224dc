package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/usecase"
)

// RunHandler handles synchronous run requests.
type RunHandler struct {
	executeUC *usecase.ExecuteCodeUsecase
	logger    *zap.Logger
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(executeUC *usecase.ExecuteCodeUsecase, logger *zap.Logger) *RunHandler {
	return &RunHandler{executeUC: executeUC, logger: logger}
}

// errorBody is the shape every run failure takes, so the editor can render
// it the same way as program output.
func errorBody(msg string) gin.H {
	return gin.H{"output": msg, "hasError": true}
}

// Run handles POST /run and POST /api/v1/run
func (h *RunHandler) Run(c *gin.Context) {
	var req domain.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, errorBody("Request body too large"))
			return
		}
		c.JSON(http.StatusBadRequest, errorBody("No code provided"))
		return
	}

	result, err := h.executeUC.Execute(c.Request.Context(), &req, nil)
	if err != nil {
		status, msg := mapRunError(err, h.logger)
		c.JSON(status, errorBody(msg))
		return
	}

	c.JSON(http.StatusOK, result)
}

// mapRunError converts an Execute error to an HTTP status and message.
func mapRunError(err error, logger *zap.Logger) (int, string) {
	switch {
	case errors.Is(err, domain.ErrEmptySourceCode):
		return http.StatusBadRequest, "No code provided"
	case errors.Is(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "Source code is too large"
	case errors.Is(err, domain.ErrPoolClosed):
		return http.StatusServiceUnavailable, "Server is shutting down, please retry"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Request cancelled before execution started"
	default:
		logger.Error("Run failed", zap.Error(err))
		return http.StatusInternalServerError, "Internal server error"
	}
}
