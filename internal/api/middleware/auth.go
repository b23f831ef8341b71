package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	// UserIDHeader carries the authenticated user id set by the upstream gateway
	UserIDHeader = "X-User-ID"

	userIDKey = "user_id"
	adminKey  = "admin"
)

// UserMiddleware reads the user id header. When required is false a missing
// header is a guest request; a malformed one is always rejected.
func UserMiddleware(required bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if raw == "" {
			if required {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user id"})
				c.Abort()
				return
			}
			c.Next()
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			logger.Debug("Invalid user id header", zap.String("value", raw))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID retrieves the user id set by UserMiddleware
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// AdminAuth checks the bearer token against the bcrypt hash of the admin key.
// With no hash configured every admin request is refused.
func AdminAuth(apiKeyHash string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKeyHash == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "admin access is not configured"})
			c.Abort()
			return
		}

		authHeader := c.GetHeader("Authorization")
		apiKey, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found || apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			c.Abort()
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(apiKeyHash), []byte(apiKey)); err != nil {
			logger.Warn("Rejected admin request",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			c.Abort()
			return
		}

		c.Set(adminKey, true)
		c.Next()
	}
}

// IsAdmin reports whether AdminAuth accepted the request
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(adminKey)
}
