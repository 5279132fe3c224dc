package http

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/SachiinVishwakarma/CodeBasse/internal/delivery/http/middleware"
	"github.com/SachiinVishwakarma/CodeBasse/internal/repository"
	"github.com/SachiinVishwakarma/CodeBasse/internal/usecase"
)

// RouterDeps holds everything the router needs.
type RouterDeps struct {
	ExecuteUC  *usecase.ExecuteCodeUsecase
	ExamplesUC *usecase.ExamplesUsecase
	Logger     *zap.Logger

	RateLimitPerMin int
	RateLimitStore  repository.RateLimitStore
	AllowedOrigins  []string
	MaxBodyBytes    int64

	// Tokens enables bearer auth on run endpoints when non-nil.
	Tokens middleware.TokenValidator

	HealthChecks map[string]HealthCheck
}

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(deps *RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.Logger(deps.Logger))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Hello, CodeBase!")
	})

	// Metrics endpoint (no rate limiting)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	runHandler := NewRunHandler(deps.ExecuteUC, deps.Logger)
	wsHandler := NewWebSocketHandler(deps.ExecuteUC, deps.AllowedOrigins, deps.MaxBodyBytes, deps.Logger)

	// Run endpoints (auth, rate limiting, body limit)
	var guards []gin.HandlerFunc
	if deps.Tokens != nil {
		guards = append(guards, middleware.RequireBearer(deps.Tokens))
	}
	if deps.RateLimitStore != nil {
		guards = append(guards, middleware.RateLimiter(deps.RateLimitStore, deps.RateLimitPerMin, deps.Logger))
	}
	if deps.MaxBodyBytes > 0 {
		guards = append(guards, middleware.BodySizeLimit(deps.MaxBodyBytes))
	}
	guarded := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(slices.Clone(guards), h)
	}

	router.POST("/run", guarded(runHandler.Run)...)

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Health check (no rate limiting)
		healthHandler := NewHealthHandler(deps.HealthChecks, deps.Logger)
		v1.GET("/health", healthHandler.Health)

		examplesHandler := NewExamplesHandler(deps.ExamplesUC, deps.Logger)
		v1.GET("/examples", examplesHandler.List)
		v1.GET("/examples/:id", examplesHandler.GetByID)

		v1.POST("/run", guarded(runHandler.Run)...)
		v1.GET("/run/stream", guarded(wsHandler.Stream)...)
	}

	return router
}
