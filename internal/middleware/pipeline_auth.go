package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/logger"
)

// APIKeyHeader carries the shared secret for automation endpoints.
const APIKeyHeader = "X-API-Key"

// PipelineAuthMiddleware guards automation routes such as balance
// reconciliation with a shared API key. An empty key disables the routes.
func PipelineAuthMiddleware(apiKey string) gin.HandlerFunc {
	log := logger.Named("pipeline")
	return func(c *gin.Context) {
		if apiKey == "" {
			abortWithError(c, apperrors.ErrPipelineNotConfigured)
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader(APIKeyHeader)), []byte(apiKey)) != 1 {
			log.Warnw("rejected pipeline call", "path", c.Request.URL.Path, "ip", c.ClientIP())
			abortWithError(c, apperrors.ErrInvalidAPIKey)
			return
		}
		c.Next()
	}
}
