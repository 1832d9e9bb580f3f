package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "cashbook/internal/errors"
	"cashbook/internal/logger"
)

// ErrorHandler renders the last error attached with c.Error as the JSON
// error envelope, unless the handler already wrote a response.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		c.JSON(toAppError(c, c.Errors.Last().Err))
	}
}

// abortWithError stops the chain and writes err as the JSON error envelope.
func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(toAppError(c, err))
}

// toAppError maps err to a status and envelope. Internal causes are logged
// and never sent to the client.
func toAppError(c *gin.Context, err error) (int, gin.H) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.Get().Errorw("unexpected error",
			"error", err.Error(),
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
			"request_id", c.GetString(RequestIDKey),
		)
		appErr = apperrors.ErrInternalServer
	} else if appErr.Internal != nil {
		logger.Get().Errorw("app error",
			"code", appErr.Code,
			"internal", appErr.Internal.Error(),
			"path", c.Request.URL.Path,
			"request_id", c.GetString(RequestIDKey),
		)
	}
	return appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	}
}
