package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tourbook/middleware"
)

// getLogger retrieves the request-scoped Zap logger from the Gin context, or
// fallback when the request logging middleware is not installed.
func getLogger(c *gin.Context, fallback *zap.Logger) *zap.Logger {
	if l, exists := c.Get(middleware.LoggerKey); exists {
		if logger, ok := l.(*zap.Logger); ok {
			return logger
		}
	}
	return fallback
}
