package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/topiclens/topiclens-backend/internal/response"
	"github.com/topiclens/topiclens-backend/internal/service"
)

const (
	// ContextKeyClaims is the Gin context key for JWT claims.
	ContextKeyClaims = "claims"
)

// RequireTeacherJWT validates a teacher JWT from the Authorization header
// and checks the session is still the active one in Redis.
func RequireTeacherJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractAndValidateClaims(c, authService)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if claims.TokenType != service.TokenTypeTeacher {
			response.AbortFail(c, http.StatusForbidden, response.ErrTeacherAccessOnly)
			return
		}

		if err := authService.ValidateTeacherSession(c.Request.Context(), claims.TeacherID, claims.ID); err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrSessionInvalidated)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireAttemptJWT validates an attempt-scoped JWT and checks it matches
// the attempt in the URL, so a token for one attempt cannot drive
// another.
func RequireAttemptJWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := extractAndValidateClaims(c, authService)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if claims.TokenType != service.TokenTypeAttempt {
			response.AbortFail(c, http.StatusForbidden, response.ErrAttemptAccessOnly)
			return
		}

		if id := c.Param("attemptId"); id != "" && id != claims.AttemptID {
			response.AbortFail(c, http.StatusForbidden, response.ErrAttemptAccessOnly)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireAttemptWSAuth validates an attempt JWT from the query param
// ?token=... Used for WebSocket upgrade requests, which cannot send an
// Authorization header from the browser.
func RequireAttemptWSAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := authService.ValidateToken(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if claims.TokenType != service.TokenTypeAttempt {
			response.AbortFail(c, http.StatusForbidden, response.ErrAttemptAccessOnly)
			return
		}

		if id := c.Param("attemptId"); id != "" && id != claims.AttemptID {
			response.AbortFail(c, http.StatusForbidden, response.ErrAttemptAccessOnly)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

// AttemptIDFromClaims parses the attempt UUID out of the context claims.
func AttemptIDFromClaims(c *gin.Context) (uuid.UUID, bool) {
	claims := GetClaims(c)
	if claims == nil || claims.AttemptID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.AttemptID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func extractAndValidateClaims(c *gin.Context, authService *service.AuthService) (*service.Claims, error) {
	tokenStr := ""

	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			tokenStr = parts[1]
		}
	}

	// Fallback for EventSource (SSE) which cannot send headers
	if tokenStr == "" {
		tokenStr = c.Query("token")
	}

	if tokenStr == "" {
		return nil, fmt.Errorf("authorization header or token query required")
	}

	return authService.ValidateToken(tokenStr)
}
