package handler

import (
	"context"
	"net/http"
	"time"

	"shop-service/pkg/cache"
	"shop-service/pkg/database"
	"shop-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db      *gorm.DB
	cache   *cache.Cache
	service string
}

// NewHealthHandler builds the handler; cache may be nil
func NewHealthHandler(db *gorm.DB, c *cache.Cache, service string) *HealthHandler {
	return &HealthHandler{db: db, cache: c, service: service}
}

// HealthCheck handles the health check endpoint. ?check=db and ?check=cache
// ping the dependency and answer 503 when it is down.
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	log := logger.FromContext(c)

	response := map[string]interface{}{
		"status":  "ok",
		"service": h.service,
		"time":    time.Now().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	switch c.QueryParam("check") {
	case "db":
		if err := database.Ping(ctx, h.db); err != nil {
			log.Error("Database ping error", zap.Error(err))
			response["status"] = "error"
			response["db_status"] = "error"
			response["db_error"] = "Failed to ping database"
			return c.JSON(http.StatusServiceUnavailable, response)
		}
		response["db_status"] = "ok"
	case "cache":
		if h.cache == nil {
			response["cache_status"] = "disabled"
			break
		}
		if err := h.cache.Ping(ctx); err != nil {
			log.Error("Cache ping error", zap.Error(err))
			response["status"] = "error"
			response["cache_status"] = "error"
			return c.JSON(http.StatusServiceUnavailable, response)
		}
		response["cache_status"] = "ok"
	}

	return c.JSON(http.StatusOK, response)
}
