package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/echo-chat/backend/api/handlers"
	"github.com/echo-chat/backend/internal/config"
	"github.com/echo-chat/backend/internal/db"
	"github.com/echo-chat/backend/internal/logging"
	"github.com/echo-chat/backend/internal/repository"
	"github.com/echo-chat/backend/internal/ws"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		l := logging.New("info", true)
		l.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty)

	// Ensure the data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create database directory")
	}

	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer db.CloseDB()

	messageRepo := repository.NewMessageRepository(database)

	ws.SetCheckOrigin(ws.OriginChecker(cfg.AllowedOrigins))

	wsService := ws.NewService(messageRepo, cfg.HistoryLimit, logger)
	defer wsService.Close()

	wsHandler := handlers.NewWebSocketHandler(wsService.Handler(), logger)
	historyHandler := handlers.NewHistoryHandler(messageRepo, cfg.HistoryLimit)

	r := newRouter(logger, wsHandler, historyHandler, wsService)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Int("history_limit", cfg.HistoryLimit).Strs("allowed_origins", cfg.AllowedOrigins).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info().Msg("shutting down server")

	wsService.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}

func newRouter(logger zerolog.Logger, wsHandler *handlers.WebSocketHandler, historyHandler *handlers.HistoryHandler, wsService *ws.Service) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	// Enable CORS for development
	r.Use(corsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"clients": wsService.ClientCount(),
		})
	})

	wsHandler.RegisterRoutes(r)

	api := r.Group("/api")
	{
		historyHandler.RegisterRoutes(api)
	}

	return r
}

// requestLogger logs each request through zerolog.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
