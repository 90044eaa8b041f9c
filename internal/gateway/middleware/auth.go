package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"resto-pos/internal/utils"
)

const (
	ActorIDKey   = "actor_id"
	ActorNameKey = "actor_name"
)

// JWTAuth requires a bearer token and exposes the actor it names to the
// handlers.
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "missing bearer token",
			})
			return
		}

		claims, err := utils.ParseToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "invalid or expired token",
			})
			return
		}

		c.Set(ActorIDKey, claims.ActorID)
		c.Set(ActorNameKey, claims.Name)
		c.Next()
	}
}
