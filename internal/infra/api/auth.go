package api

import (
	"net/http"
	"strings"

	"appdeck/internal/infra/token"
	"appdeck/pkg/log"

	"github.com/gin-gonic/gin"
)

const claimsKey = "appdeck.claims"

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}

// bearerAuth accepts requests carrying a valid capability token.
func bearerAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractBearerToken(c)
		if raw == "" || verifier == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}
		claims, err := verifier.Verify(raw)
		if err != nil {
			log.Debug("Rejected capability token", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid bearer token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *token.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*token.Claims)
	return claims
}
