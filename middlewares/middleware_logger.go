package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-dispatch/utils"
)

func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" && c.Query("token") == "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		entry := utils.InfoLogger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     path,
			"status":   status,
			"latency":  time.Since(start).String(),
			"ip":       c.ClientIP(),
			"identity": CurrentIdentity(c).Key(),
		})
		switch {
		case status >= 500:
			entry.Warn("request failed")
		case len(c.Errors) > 0:
			entry.Info(c.Errors.String())
		default:
			entry.Info("request")
		}
	}
}
