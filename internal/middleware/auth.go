package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/chatline/internal/apperr"
	"github.com/lalith-99/chatline/internal/auth"
	"github.com/lalith-99/chatline/internal/identity"
	"github.com/lalith-99/chatline/internal/models"
	"go.uber.org/zap"
)

// Context keys for values stored in gin.Context. Handlers read them through
// the helpers below rather than c.Get.
const (
	ContextKeyPrincipal = "principal"
	ContextKeyCaller    = "caller"
)

// Auth returns a Gin middleware that verifies the bearer token and stores the
// resulting principal. The token comes from the Authorization header, or from
// the access_token query parameter for websocket upgrades, which browsers
// cannot attach headers to.
func Auth(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		principal, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyPrincipal, principal)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		token := c.Query("access_token")
		return token, token != ""
	}

	// "Bearer eyJhbG..." -> ["Bearer", "eyJhbG..."]
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Identity resolves the principal set by Auth to a stored user. Principals
// that never synced are rejected with 403 so clients know to call
// /v1/users/sync first.
func Identity(resolver *identity.Resolver, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := resolver.Resolve(c.Request.Context(), GetPrincipal(c))
		switch {
		case err == nil:
			c.Set(ContextKeyCaller, user)
			c.Next()
		case errors.Is(err, apperr.ErrUnauthorized):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		case errors.Is(err, apperr.ErrUserNotFound):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user not registered"})
		default:
			logger.Error("failed to resolve identity", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
	}
}

// GetPrincipal returns the verified principal, or nil outside Auth.
func GetPrincipal(c *gin.Context) *auth.Principal {
	val, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return nil
	}
	p, _ := val.(*auth.Principal)
	return p
}

// GetCaller returns the resolved user, or nil outside Identity. Services
// turn a nil caller into ErrUnauthorized.
func GetCaller(c *gin.Context) *models.User {
	val, exists := c.Get(ContextKeyCaller)
	if !exists {
		return nil
	}
	u, _ := val.(*models.User)
	return u
}
