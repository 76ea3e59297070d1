// Package handlers wires the HTTP and websocket surface: the Twilio
// webhooks that answer calls and texts, the media-stream websocket
// that feeds call sessions, and the health and metrics endpoints.
package handlers

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/internal/tools"
	"github.com/troikatech/voice-gateway/pkg/env"
	"github.com/troikatech/voice-gateway/pkg/holdaudio"
	"github.com/troikatech/voice-gateway/pkg/logger"
	"github.com/troikatech/voice-gateway/pkg/twilioctl"
)

type Handler struct {
	cfg         *env.Config
	redisClient *redis.Client
	control     *twilioctl.Client
	registry    *tools.Registry
	holdSource  holdaudio.Source
	logger      *zap.Logger
}

func NewHandler(
	cfg *env.Config,
	redisClient *redis.Client,
	control *twilioctl.Client,
	registry *tools.Registry,
	holdSource holdaudio.Source,
) *Handler {
	return &Handler{
		cfg:         cfg,
		redisClient: redisClient,
		control:     control,
		registry:    registry,
		holdSource:  holdSource,
		logger:      logger.Log,
	}
}
