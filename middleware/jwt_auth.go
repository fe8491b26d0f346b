package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"watchlist_backend/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims represents the claims carried in a session token. Issuance
// and credential validation happen in the external auth system; this layer
// only resolves the calling identity.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// JWTAuthMiddleware resolves the session identity and rejects requests
// without one
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := claimsFromRequest(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Not authenticated",
			})
			c.Abort()
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("user_email", claims.Email)
		c.Set("authenticated", true)

		c.Next()
	}
}

// OptionalJWTAuthMiddleware resolves the session identity if present, but
// allows anonymous access. Readers degrade to empty results for anonymous
// callers instead of failing.
func OptionalJWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := claimsFromRequest(c)
		if err != nil {
			c.Set("authenticated", false)
			c.Next()
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("user_email", claims.Email)
		c.Set("authenticated", true)

		c.Next()
	}
}

// CurrentUserID returns the resolved user id, or "" for anonymous callers
func CurrentUserID(c *gin.Context) string {
	if id, ok := c.Get("user_id"); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// claimsFromRequest extracts and validates the bearer token
func claimsFromRequest(c *gin.Context) (*SessionClaims, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, fmt.Errorf("authorization header is required")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return nil, fmt.Errorf("invalid authorization header format")
	}

	return validateSessionToken(tokenString)
}

// validateSessionToken parses and validates an HS256 session token
func validateSessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
