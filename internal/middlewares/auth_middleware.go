package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/skyiron/chartdbDiagramsSQL/internal/utils"
)

// Authenticate verifies bearer tokens against the configured secret. An
// empty secret disables authentication, for local single-user setups.
func Authenticate(secret []byte) gin.HandlerFunc {
	if len(secret) == 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing Authorization header"})
			return
		}

		// Expected format: "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid Authorization format"})
			return
		}

		claims, err := utils.VerifyJWT(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		// Store the token subject in context for handlers
		c.Set("subject", claims.Subject)

		c.Next()
	}
}
