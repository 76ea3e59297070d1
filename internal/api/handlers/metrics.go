package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/troikatech/voice-gateway/pkg/metrics"
)

func (h *Handler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, metrics.Snapshot())
}

func (h *Handler) GetPrometheusMetrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4", []byte(metrics.Prometheus()))
}
