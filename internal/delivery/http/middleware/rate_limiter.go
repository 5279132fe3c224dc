package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SachiinVishwakarma/CodeBasse/internal/metrics"
	"github.com/SachiinVishwakarma/CodeBasse/internal/repository"
)

const rateWindow = time.Minute

// RateLimiter returns a middleware that enforces per-client rate limiting with
// a fixed one-minute window kept in store. A store error lets the request
// through.
func RateLimiter(store repository.RateLimitStore, maxRequests int, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxRequests <= 0 {
			c.Next()
			return
		}

		ok, err := store.Allow(c.Request.Context(), c.ClientIP(), maxRequests, rateWindow)
		if err != nil {
			logger.Warn("Rate limit store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", fmt.Sprintf("%d", int(rateWindow/time.Second)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"output":   fmt.Sprintf("Rate limit exceeded. Maximum %d requests per minute.", maxRequests),
				"hasError": true,
			})
			return
		}
		c.Next()
	}
}
