package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SubjectKey is the gin context key holding the authenticated token subject.
const SubjectKey = "subject"

// TokenValidator verifies a bearer token and returns its subject.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// RequireBearer rejects requests without a valid "Authorization: Bearer"
// token. Browsers cannot set headers on websocket upgrades, so the token is
// also accepted in the access_token query parameter.
func RequireBearer(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abortUnauthorized(c)
			return
		}
		subject, err := tokens.Validate(raw)
		if err != nil {
			abortUnauthorized(c)
			return
		}
		c.Set(SubjectKey, subject)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return c.Query("access_token")
}

func abortUnauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="codebasse"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"output":   "Valid authentication required",
		"hasError": true,
	})
}
