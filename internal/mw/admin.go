package mw

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminKeyHeader carries the shared admin key.
const AdminKeyHeader = "X-Admin-Key"

// AdminKey only lets requests through that present key. With an empty key the
// admin endpoints are disabled.
func AdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":     "admin endpoints are disabled",
				"code":      "admin_disabled",
				"retryable": false,
			})
			return
		}
		got := c.GetHeader(AdminKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "missing or invalid admin key",
				"code":      "unauthorized",
				"retryable": false,
			})
			return
		}
		c.Next()
	}
}
