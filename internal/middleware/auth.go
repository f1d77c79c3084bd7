package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/domain"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/auth"
)

const ctxIdentity = "identity"

// AttachBearerToken puts the caller's token on the request context without
// judging it. Routes that gate later, at the moment it matters, use this.
func AttachBearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractBearerToken(c); token != "" {
			c.Request = c.Request.WithContext(auth.WithBearerToken(c.Request.Context(), token))
		}
		c.Next()
	}
}

// RequireIdentity rejects the request unless the provider reports a caller.
func RequireIdentity(provider auth.IdentityProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := provider.CurrentIdentity(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		c.Set(ctxIdentity, identity)
		c.Next()
	}
}

func IdentityFrom(c *gin.Context) (*domain.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return nil, false
	}
	identity, ok := v.(*domain.Identity)
	return identity, ok && identity != nil
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
