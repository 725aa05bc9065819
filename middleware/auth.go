package middleware

import (
	"net/http"
	"strings"

	"PRelay/tools/security"

	"github.com/gin-gonic/gin"
)

const (
	CtxUserID   = "user_id"
	CtxUsername = "username"
)

// Auth verifies the Bearer token and stores the identity on the request
// context for handlers downstream.
func Auth(opts security.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		ident, err := security.Verify(opts, strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(CtxUserID, ident.UserID)
		c.Set(CtxUsername, ident.Username)
		c.Next()
	}
}

// UserID reads the authenticated user id set by Auth.
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserID)
}

func Username(c *gin.Context) string {
	return c.GetString(CtxUsername)
}
