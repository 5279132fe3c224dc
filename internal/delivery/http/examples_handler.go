package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SachiinVishwakarma/CodeBasse/internal/domain"
	"github.com/SachiinVishwakarma/CodeBasse/internal/usecase"
)

// ExamplesHandler serves the sample program catalog.
type ExamplesHandler struct {
	examplesUC *usecase.ExamplesUsecase
	logger     *zap.Logger
}

// NewExamplesHandler creates a new ExamplesHandler.
func NewExamplesHandler(examplesUC *usecase.ExamplesUsecase, logger *zap.Logger) *ExamplesHandler {
	return &ExamplesHandler{examplesUC: examplesUC, logger: logger}
}

// List handles GET /api/v1/examples?category=&difficulty=
func (h *ExamplesHandler) List(c *gin.Context) {
	examples, err := h.examplesUC.List(c.Request.Context(), usecase.ExampleFilter{
		Category:   c.Query("category"),
		Difficulty: domain.Difficulty(c.Query("difficulty")),
	})
	if err != nil {
		h.logger.Error("List examples failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"examples": examples,
		"count":    len(examples),
	})
}

// GetByID handles GET /api/v1/examples/:id
func (h *ExamplesHandler) GetByID(c *gin.Context) {
	id := c.Param("id")
	ex, err := h.examplesUC.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrExampleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Example not found"})
			return
		}
		h.logger.Error("Get example failed", zap.Error(err), zap.String("example_id", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, ex)
}
