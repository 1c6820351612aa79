package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORSMiddlewares answers preflights and stamps the allowed origin. With "*"
// the request origin is echoed back, because credentials are allowed.
func CORSMiddlewares(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allow := origin
		if allow == "*" || allow == "" {
			allow = c.GetHeader("Origin")
		}
		if allow != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allow)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, Sec-WebSocket-Protocol, Sec-WebSocket-Version, Sec-WebSocket-Key, Upgrade")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
