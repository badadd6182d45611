package logger

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const contextKey = "logger"

// FromContext retrieves the request logger from the Echo context
func FromContext(c echo.Context) *zap.Logger {
	logger, ok := c.Get(contextKey).(*zap.Logger)
	if !ok {
		return GetLogger()
	}
	return logger
}

// WithContext stores the request logger on the Echo context
func WithContext(c echo.Context, logger *zap.Logger) {
	c.Set(contextKey, logger)
}
