package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/security"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// StaffAuthMiddleware protects staff-only endpoints. A bearer token in
// the Authorization header or the staff_auth cookie must carry a valid
// staff claim.
func StaffAuthMiddleware(logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if token == "" {
			if cookie, err := c.Cookie("staff_auth"); err == nil {
				token = cookie
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		claims, err := security.ValidateJWT(token, config.JWTSecret)
		if err != nil || !security.IsStaffClaims(claims) {
			logger.Auth().Warn("Rejected staff token", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Next()
	}
}
