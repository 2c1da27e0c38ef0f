// Package main runs the fan interaction HTTP server: host API, guest API and
// display websockets, with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/faninteract/backend/config"
	"github.com/faninteract/backend/internal/auth"
	"github.com/faninteract/backend/internal/entities"
	"github.com/faninteract/backend/internal/entity"
	"github.com/faninteract/backend/internal/middleware"
	"github.com/faninteract/backend/internal/models"
	"github.com/faninteract/backend/internal/polls"
	"github.com/faninteract/backend/internal/realtime"
	"github.com/faninteract/backend/internal/remote"
	"github.com/faninteract/backend/internal/submissions"
	"github.com/faninteract/backend/internal/surface"
	"github.com/faninteract/backend/pkg/database"
	"github.com/faninteract/backend/pkg/queue"
	"github.com/faninteract/backend/pkg/redis"
	"github.com/faninteract/backend/pkg/response"
	"github.com/faninteract/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{MaxConns: int32(cfg.Database.MaxConns)}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var broadcaster remote.Broadcaster
	switch cfg.Broadcast.Driver {
	case config.BroadcastNATS:
		nc, err := realtime.ConnectNATS(cfg.Broadcast.NATSURL, logger)
		if err != nil {
			logger.Fatal("nats", zap.Error(err))
		}
		nb := realtime.NewNATSBroadcaster(nc, logger)
		defer nb.Close()
		broadcaster = nb
	default:
		broadcaster = realtime.NewRedisBroadcaster(rdb.Client, logger)
	}

	var store remote.ObjectStore
	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		MediaBucket:     cfg.AWS.MediaBucket,
		PublicBaseURL:   cfg.AWS.PublicBucketURL,
	}, logger)
	if err != nil {
		logger.Warn("s3 disabled, photo uploads will be rejected", zap.Error(err))
	} else {
		store = s3Client
	}

	rows := remote.NewPostgres(pool, remote.FanSchema, logger)
	feed, err := remote.NewPQFeed(remote.DefaultFeedConfig(cfg.Database.DSN()), rows, logger)
	if err != nil {
		logger.Fatal("change feed", zap.Error(err))
	}
	go func() {
		if err := feed.Run(ctx); err != nil {
			logger.Error("change feed stopped", zap.Error(err))
		}
	}()
	svc := remote.NewClient(rows, feed, broadcaster, store)

	timing, err := config.LoadTiming(cfg.Display.PresetsFile)
	if err != nil {
		logger.Warn("display presets ignored", zap.String("file", cfg.Display.PresetsFile), zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	entityService := entities.NewService(svc, jobQueue, entities.Options{
		PublicBaseURL: cfg.Display.PublicBaseURL,
		MediaBucket:   cfg.AWS.MediaBucket,
	}, logger)
	entityHandler := entities.NewHandler(entityService, logger)
	submissionHandler := submissions.NewHandler(submissions.NewService(svc, entityService, cfg.AWS.MediaBucket, logger), logger)
	pollHandler := polls.NewHandler(polls.NewService(svc, logger), logger)

	hub := realtime.NewHub(logger)
	hub.SetScreenChangeHandler(func(kind, entityID string, count int) {
		logger.Info("screens changed", zap.String("kind", kind), zap.String("entity_id", entityID), zap.Int("screens", count))
	})
	clock := clockwork.NewRealClock()
	newSurface := func(k entity.Kind, id string) realtime.Runner {
		return surface.New(surface.Config{
			Service:      svc,
			Kind:         k,
			EntityID:     id,
			Clock:        clock,
			Timing:       timing,
			WriteTimeout: cfg.Display.WriteTimeout,
			Logger:       logger,
		})
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Guest pages (no auth)
	public := router.Group("")
	submissionHandler.RegisterPublic(public)
	pollHandler.RegisterPublic(public)

	// Displays are public screens
	router.GET("/ws/display", realtime.ServeDisplay(hub, newSurface, logger))
	router.GET("/displays/:kind/:id/screens", realtime.ScreensHandler(hub))

	// Host dashboard (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService), middleware.RequireRole(models.RoleHost, models.RoleAdmin))
	{
		entityHandler.Register(api)
		submissionHandler.Register(api)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("broadcast", cfg.Broadcast.Driver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	hub.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	stop()
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
