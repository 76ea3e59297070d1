package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (h *Handler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	services := map[string]string{
		"api":   "healthy",
		"redis": "unknown",
	}

	if h.redisClient != nil {
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			services["redis"] = "unhealthy"
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "disabled"
	}

	if h.cfg.OpenAIApiKey != "" {
		services["realtime"] = "configured"
	} else {
		services["realtime"] = "unconfigured"
	}
	if h.cfg.TwilioAccountSID != "" && h.cfg.TwilioAuthToken != "" {
		services["twilio"] = "configured"
	} else {
		services["twilio"] = "unconfigured"
	}

	overallStatus := "healthy"
	for _, status := range services {
		if status == "unhealthy" || status == "unconfigured" {
			overallStatus = "degraded"
			break
		}
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().Format(time.RFC3339),
		Services:  services,
	})
}
