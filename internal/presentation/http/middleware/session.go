package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AmPepSoc/analytics-go/pkg/config"
)

const sessionContextKey = "analytics_session_id"

// SessionMiddleware assigns each visitor a stable session identifier.
// The cookie wins; the X-Analytics-Session-ID header covers cookieless
// SDK clients; otherwise a fresh identifier is minted and set.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(config.SessionCookieName)
		if err != nil || sessionID == "" {
			sessionID = c.GetHeader("X-Analytics-Session-ID")
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
			c.SetCookie(
				config.SessionCookieName,
				sessionID,
				config.SessionCookieMaxAge,
				"/",
				"",
				false,
				true,
			)
		}

		c.Set(sessionContextKey, sessionID)
		c.Next()
	}
}

// GetSessionID returns the session identifier assigned to this request.
func GetSessionID(c *gin.Context) string {
	if v, exists := c.Get(sessionContextKey); exists {
		if sessionID, ok := v.(string); ok {
			return sessionID
		}
	}
	return ""
}
