// Package security provides JWT token utilities
package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// StaffRole is the role claim carried by staff dashboard tokens.
const StaffRole = "staff"

// ValidateJWT validates a JWT token and returns the claims
func ValidateJWT(tokenString, jwtSecret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// IsStaffClaims reports whether a validated claim set carries the staff role.
func IsStaffClaims(claims jwt.MapClaims) bool {
	role, ok := claims["role"].(string)
	return ok && role == StaffRole
}

// GenerateStaffToken creates a JWT token granting staff dashboard access.
func GenerateStaffToken(jwtSecret string, lifetime time.Duration) (string, error) {
	if jwtSecret == "" {
		return "", errors.New("jwt secret is not configured")
	}

	claims := jwt.MapClaims{
		"role": StaffRole,
		"iat":  time.Now().UTC().Unix(),
		"exp":  time.Now().UTC().Add(lifetime).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// VerifyStaffPassword checks a submitted password against the configured
// bcrypt hash.
func VerifyStaffPassword(password, passwordHash string) bool {
	if passwordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) == nil
}
