package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultMaxBodyBytes caps request bodies at 64 KiB. QR payloads and link
// descriptions never come close to this.
const DefaultMaxBodyBytes = 64 << 10

// MaxBodySize rejects bodies larger than limit bytes. The read error
// surfaces through binding as a validation failure.
func MaxBodySize(limit int64) gin.HandlerFunc {
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
