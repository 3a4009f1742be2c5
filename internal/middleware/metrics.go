package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/staff-appeal-api/internal/service"
	"github.com/noah-isme/staff-appeal-api/pkg/response"
)

// unmatchedRoute labels requests that hit no registered route, keeping client paths out of label values.
const unmatchedRoute = "unmatched"

// Metrics records every request against its route template and the error code it ended with.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), requestOutcome(c), time.Since(start))
	}
}

func requestOutcome(c *gin.Context) string {
	if code := c.GetString(response.ErrorCodeKey); code != "" {
		return code
	}
	if c.Writer.Status() >= 400 {
		return "http_error"
	}
	return "ok"
}
