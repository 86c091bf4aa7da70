package middleware

import (
	"net/http"
	"strings"

	"rps_arena/internal/logger"
	"rps_arena/internal/service"

	"github.com/gin-gonic/gin"
)

// JWT requires a bearer token and stores the player identity in the context.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing bearer token"})
			return
		}

		player, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid token"})
			return
		}

		c.Set(playerKey, player)
		c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), "player", player))
		c.Next()
	}
}
