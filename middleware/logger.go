package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/shopfloor-api/utils"
	"github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request with its status and latency
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       path,
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if userID, err := GetUserID(c); err == nil {
			fields["user_id"] = userID
		}
		entry := utils.Log.WithFields(fields)

		switch {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}
