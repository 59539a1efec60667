package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AmPepSoc/analytics-go/internal/infrastructure/observability/logging"
	"github.com/AmPepSoc/analytics-go/internal/infrastructure/security"
	"github.com/AmPepSoc/analytics-go/pkg/config"
)

// AuthHandlers contains the staff authentication HTTP handlers
type AuthHandlers struct {
	logger *logging.ChanneledLogger
}

// NewAuthHandlers creates auth handlers with injected dependencies
func NewAuthHandlers(logger *logging.ChanneledLogger) *AuthHandlers {
	return &AuthHandlers{logger: logger}
}

// PostLogin handles POST /api/v1/auth/login - staff authentication
func (h *AuthHandlers) PostLogin(c *gin.Context) {
	start := time.Now()

	var loginReq struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&loginReq); err != nil {
		h.logger.Auth().Error("Login request JSON binding failed", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if config.StaffPasswordHash == "" || config.JWTSecret == "" {
		h.logger.Auth().Error("Staff auth is not configured")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Authentication not configured"})
		return
	}

	if !security.VerifyStaffPassword(loginReq.Password, config.StaffPasswordHash) {
		h.logger.Auth().Warn("Login attempt failed", "duration", time.Since(start))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := security.GenerateStaffToken(config.JWTSecret, config.TokenLifetime)
	if err != nil {
		h.logger.Auth().Error("Token generation failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Token generation failed"})
		return
	}

	c.SetCookie(
		"staff_auth",
		token,
		int(config.TokenLifetime.Seconds()),
		"/",
		"",
		false,
		true,
	)

	h.logger.Auth().Info("Login successful", "duration", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
	})
}

// PostLogout handles POST /api/v1/auth/logout - clears the staff cookie
func (h *AuthHandlers) PostLogout(c *gin.Context) {
	c.SetCookie("staff_auth", "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetAuthStatus handles GET /api/v1/auth/status - checks current authentication status
func (h *AuthHandlers) GetAuthStatus(c *gin.Context) {
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
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	claims, err := security.ValidateJWT(token, config.JWTSecret)
	if err != nil || !security.IsStaffClaims(claims) {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"authenticated": true, "role": security.StaffRole})
}
