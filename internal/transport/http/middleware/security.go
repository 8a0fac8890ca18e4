package middleware

import "github.com/gin-gonic/gin"

// Security hardens responses for a JSON-only API: no content sniffing, no
// framing, and no caching — responses carry per-account collection data.
func Security() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
