// Package main runs the scepter session server: REST game store endpoints
// plus the websocket session synchronization layer, with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/scepter-game/scepter-server/config"
	"github.com/scepter-game/scepter-server/internal/games"
	"github.com/scepter-game/scepter-server/internal/middleware"
	"github.com/scepter-game/scepter-server/internal/realtime"
	"github.com/scepter-game/scepter-server/internal/session"
	"github.com/scepter-game/scepter-server/internal/store"
	"github.com/scepter-game/scepter-server/pkg/database"
	"github.com/scepter-game/scepter-server/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	// Redis is optional: without it the event bridge is disabled and the
	// server runs single-instance.
	var pub realtime.EventPublisher
	var sub realtime.EventSubscriber
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("redis disabled", zap.Error(err))
		} else {
			defer rdb.Close()
			pubsub := realtime.NewRedisPubSub(rdb.Client, logger)
			pub, sub = pubsub, pubsub
		}
	}

	hub := realtime.NewHub(logger, pub, sub)
	registry := session.NewRegistry(logger)
	repo := store.NewRepository(pool)
	notFound := func(err error) bool { return errors.Is(err, store.ErrNotFound) }
	controller := session.NewController(registry, hub, repo, notFound, cfg.Server.Port, logger)

	gameHandler := games.NewHandler(repo, controller, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))

	api := router.Group("/api")
	{
		api.POST("/games", gameHandler.Create)
		api.GET("/games", gameHandler.List)
		api.GET("/games/:name/players", gameHandler.Roster)
		api.PATCH("/games/:name/players/:playerId/faction", gameHandler.SetFaction)
		api.GET("/sessions", gameHandler.ActiveSessions)

		api.GET("/games/:name/objectives", gameHandler.ListObjectives)
		api.POST("/games/:name/objectives", gameHandler.AddObjective)
		api.DELETE("/games/:name/objectives/:key", gameHandler.RemoveObjective)
		api.POST("/games/:name/objectives/:key/score", gameHandler.SetScored)
	}

	// WebSocket (role declared via ?role=host|player)
	router.GET("/ws", realtime.ServeWs(hub, logger, controller))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	sweeper := session.NewSweeper(controller, time.Duration(cfg.Session.SweepIntervalMinutes)*time.Minute, logger)
	go sweeper.Run(sweepCtx)

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

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
