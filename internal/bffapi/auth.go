// Package bffapi is cmd/bffctl's thin HTTP/websocket demonstration layer
// over Soup/Registry/Engine. It is adapter glue, not part of the core
// contract (§1 Non-goals: "adapter glue converting... formats").
//
// Grounded on internal/api/auth.go's bearer-token middleware.
package bffapi

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates a bearer token against BFF_AUTH_TOKEN. An
// unset token disables auth entirely (dev mode), matching the teacher's
// own fail-open default with a loud warning in release mode.
func AuthMiddleware() gin.HandlerFunc {
	token := os.Getenv("BFF_AUTH_TOKEN")

	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("[bffapi] WARNING: BFF_AUTH_TOKEN is not set in release mode; all endpoints are publicly accessible.")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed Authorization header"})
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		c.Next()
	}
}
