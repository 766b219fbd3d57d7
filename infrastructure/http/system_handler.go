package http

import (
	"log/slog"
	"net/http"

	"linkup/errors"
	"linkup/observability"

	"github.com/gin-gonic/gin"
)

type SystemHandler struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	probe      func() error
}

// Health pings the document store.
func (h *SystemHandler) Health(c *gin.Context) {
	if err := h.probe(); err != nil {
		h.log.Warn("Health probe failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *SystemHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.monitoring.GetLatest())
}

func (h *SystemHandler) NotFound(c *gin.Context) {
	abortWithError(c, h.log, errors.ErrRouteNotFound)
}
