// Package main runs the session and recording orchestration HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roomloop/backend/config"
	"github.com/roomloop/backend/internal/media"
	"github.com/roomloop/backend/internal/middleware"
	"github.com/roomloop/backend/internal/recordings"
	"github.com/roomloop/backend/internal/rtc"
	"github.com/roomloop/backend/internal/sessions"
	"github.com/roomloop/backend/internal/webhooks"
	redisclient "github.com/roomloop/backend/pkg/redis"
	"github.com/roomloop/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if !cfg.LiveKit.Configured() {
		logger.Warn("media server not configured (LIVEKIT_API_KEY, LIVEKIT_API_SECRET, LIVEKIT_API_URL); tokens and recording will fail")
	}

	ctx := context.Background()

	// Session registry: in-memory by default, redis for shared deployments.
	var sessionStore sessions.Store
	switch cfg.Sessions.Backend {
	case "redis":
		rdb, err := redisclient.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		sessionStore = sessions.NewRedisStore(rdb, time.Duration(cfg.Sessions.TTLMinutes)*time.Minute, logger)
	default:
		sessionStore = sessions.NewMemoryStore(logger)
	}

	storageCfg := storage.Config{
		AccessKey:            cfg.Storage.AccessKey,
		SecretKey:            cfg.Storage.SecretKey,
		Bucket:               cfg.Storage.Bucket,
		Endpoint:             cfg.Storage.Endpoint,
		Region:               cfg.Storage.Region,
		PublicBaseURL:        cfg.Storage.PublicBaseURL,
		ForcePathStyle:       cfg.Storage.ForcePathStyle,
		PresignExpireMinutes: cfg.Storage.PresignExpireMinutes,
	}
	var s3Client *storage.S3
	if storageCfg.Configured() {
		s3Client, err = storage.NewS3(ctx, storageCfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	} else {
		logger.Warn("object storage not configured; recording start will be rejected")
	}

	issuer := rtc.NewIssuer(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret, cfg.LiveKit.WSURL)
	roomClient := media.NewRoomClient(cfg.LiveKit.APIURL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)
	egressClient := media.NewEgressClient(cfg.LiveKit.APIURL, cfg.LiveKit.APIKey, cfg.LiveKit.APISecret)

	recordStore := recordings.NewMemoryStore()
	recordingSvc := recordings.NewService(sessionStore, recordStore, roomClient, egressClient, storageCfg, logger)

	sessionHandler := sessions.NewHandler(sessionStore, issuer, cfg.Server.PublicBaseURL, logger)
	recordingHandler := recordings.NewHandler(recordingSvc, sessionStore, recordStore, s3Client, logger)
	webhookHandler := webhooks.NewHandler(cfg.Webhook.Secret, sessionStore, recordingSvc, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/config/check", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"success":          true,
				"mediaServer":      cfg.LiveKit.Configured(),
				"storage":          storageCfg.Configured(),
				"webhookSecretSet": cfg.Webhook.Secret != "",
				"sessionStore":     cfg.Sessions.Backend,
			})
		})

		api.POST("/sessions/create", sessionHandler.Create)
		api.POST("/sessions/:sessionId/join", sessionHandler.Join)
		api.GET("/sessions/:sessionId", sessionHandler.Get)

		api.POST("/recordings/session/:sessionId/start", recordingHandler.Start)
		api.POST("/recordings/session/:sessionId/stop", recordingHandler.Stop)
		api.GET("/recordings/session/:sessionId", recordingHandler.ListBySession)
		api.GET("/recordings", recordingHandler.List)
		api.GET("/recordings/:id", recordingHandler.GetByID)
		api.GET("/recordings/:id/download-url", recordingHandler.DownloadURL)

		api.POST("/webhooks/livekit", webhookHandler.Handle)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Session retention sweep (memory backend only; redis uses key TTLs).
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	if sweeper, ok := sessionStore.(sessions.Sweeper); ok && cfg.Sessions.TTLMinutes > 0 {
		go runSweeper(sweepCtx, sweeper,
			time.Duration(cfg.Sessions.SweepMinutes)*time.Minute,
			time.Duration(cfg.Sessions.TTLMinutes)*time.Minute,
			logger)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sweepCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func runSweeper(ctx context.Context, sweeper sessions.Sweeper, interval, ttl time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sweeper.Sweep(ctx, ttl); err != nil {
				logger.Warn("session sweep failed", zap.Error(err))
			}
		}
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
