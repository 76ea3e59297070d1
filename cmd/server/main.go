package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/troikatech/voice-gateway/internal/api/handlers"
	"github.com/troikatech/voice-gateway/internal/tools"
	"github.com/troikatech/voice-gateway/pkg/env"
	"github.com/troikatech/voice-gateway/pkg/holdaudio"
	"github.com/troikatech/voice-gateway/pkg/logger"
	"github.com/troikatech/voice-gateway/pkg/middleware"
	"github.com/troikatech/voice-gateway/pkg/otel"
	"github.com/troikatech/voice-gateway/pkg/twilioctl"
)

type Server struct {
	cfg         *env.Config
	redisClient *redis.Client
	handler     *handlers.Handler
}

func main() {
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.OTELEnabled {
		shutdown, err := otel.InitTracing("voice-gateway", "1.0.0", cfg.OTELEndpoint)
		if err != nil {
			logger.Log.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer shutdown()
			logger.Log.Info("OpenTelemetry tracing enabled", zap.String("endpoint", cfg.OTELEndpoint))
		}
	}

	logger.Log.Info("Starting voice gateway",
		zap.String("env", cfg.AppEnv),
		zap.String("port", cfg.AppPort),
		zap.String("model", cfg.RealtimeModel),
	)

	// Redis backs webhook rate limiting. The gateway still answers
	// calls without it.
	var redisClient *redis.Client
	if opt, err := redis.ParseURL(cfg.RedisURL); err != nil {
		logger.Log.Warn("Invalid Redis URL, rate limiting disabled", zap.Error(err))
	} else {
		redisClient = redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Log.Warn("Redis unreachable, rate limiting disabled", zap.Error(err))
			redisClient = nil
		}
		cancel()
	}

	control := twilioctl.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken)

	var holdSource holdaudio.Source
	if cfg.HoldMusicDir != "" {
		holdSource = holdaudio.NewDirSource(cfg.HoldMusicDir)
	}

	registry := buildRegistry(cfg)

	server := &Server{
		cfg:         cfg,
		redisClient: redisClient,
		handler:     handlers.NewHandler(cfg, redisClient, control, registry, holdSource),
	}

	router := server.setupRouter()

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("Voice gateway listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}

func buildRegistry(cfg *env.Config) *tools.Registry {
	geocoder := tools.NewGeocoder(cfg.GeoBaseURL)
	return tools.NewRegistry(
		tools.NewWebSearch(cfg.SearchBaseURL, cfg.SearchApiKey),
		tools.NewGetWeather(geocoder, cfg.WeatherBaseURL),
		tools.NewFindPlaces(geocoder),
		tools.NewGetDirections(geocoder, cfg.RouteBaseURL),
		tools.NewSendEmail(cfg.SendgridApiKey, cfg.EmailFrom),
		tools.NewSendSMS(),
		tools.NewTrackLocation(cfg.PublicBaseURL),
		tools.NewSetNoiseReduction(),
		tools.NewEndCall(),
		tools.NewTransferCall(cfg.TransferDirectory),
	)
}

func (s *Server) setupRouter() *gin.Engine {
	if s.cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())

	if s.cfg.OTELEnabled {
		router.Use(otel.GinMiddleware())
	}

	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] %s %s %d %s\n",
			param.TimeStamp.Format(time.RFC3339),
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency,
		)
	}))

	corsConfig := cors.DefaultConfig()
	if s.cfg.CORSAllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{s.cfg.CORSAllowedOrigins}
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", s.handler.HealthCheck)
	router.GET("/metrics", s.handler.GetMetrics)
	router.GET("/metrics/prometheus", s.handler.GetPrometheusMetrics)

	// Twilio webhooks: signature verified, rate limited.
	webhooks := router.Group("/twilio")
	webhooks.Use(middleware.TwilioSignature(s.cfg.TwilioAuthToken, s.cfg.PublicBaseURL))
	if s.redisClient != nil {
		rateLimiter := middleware.NewRateLimiter(s.redisClient, s.cfg.WebhookRateLimitRPM)
		webhooks.Use(rateLimiter.Middleware())
	}
	{
		webhooks.POST("/voice", s.handler.TwilioVoice)
		webhooks.POST("/sms", s.handler.TwilioSMS)
	}

	// Media-stream websocket (Twilio connects here; no signature on WS).
	router.GET("/media-stream", s.handler.MediaStream)

	return router
}
