package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"mulabo.app/chatbot/common/id"
	"mulabo.app/chatbot/common/logger"
	"mulabo.app/chatbot/common/otel"
	"mulabo.app/chatbot/core/config"
	"mulabo.app/chatbot/core/db"
	"mulabo.app/chatbot/internal/chat"
	"mulabo.app/chatbot/internal/http/handler/webhook"
	"mulabo.app/chatbot/internal/http/middleware"
	httprouter "mulabo.app/chatbot/internal/http/router"
	"mulabo.app/chatbot/internal/llm"
	"mulabo.app/chatbot/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "chatbot starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	sessions, cleanup, err := buildSessionStore(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to set up session store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var archive store.TurnArchive
	if cfg.ArchiveEnabled() {
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			slog.ErrorContext(ctx, "failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()
		archive = store.NewPostgresTurnArchive(database)
		slog.InfoContext(ctx, "turn archive enabled")
	}

	completer, err := llm.New(llm.Config{
		APIKey:  cfg.Completion.APIKey,
		BaseURL: cfg.Completion.BaseURL,
		Model:   cfg.Completion.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create completion client", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "completion client ready", "model", completer.Model())

	messenger, err := webhook.NewLineMessenger(cfg.Line.ChannelAccessToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create messaging client", "error", err)
		os.Exit(1)
	}

	dispatcher := chat.NewDispatcher(chat.DispatcherConfig{
		Sessions:  sessions,
		Completer: completer,
		Archive:   archive,
		Timeout:   cfg.Completion.Timeout,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, messenger, dispatcher)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func buildSessionStore(ctx context.Context, cfg config.Config) (store.SessionStore, func(), error) {
	if !cfg.Session.SessionsInRedis() {
		slog.InfoContext(ctx, "sessions in process memory")
		return store.NewMemorySessionStore(), func() {}, nil
	}

	redisOpts, err := redis.ParseURL(cfg.Session.RedisURL)
	if err != nil {
		return nil, nil, err
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, nil, err
	}
	slog.InfoContext(ctx, "sessions in redis", "ttl", cfg.Session.TTL)

	cleanup := func() {
		if err := redisClient.Close(); err != nil {
			slog.Warn("redis close error", "error", err)
		}
	}
	return store.NewRedisSessionStore(redisClient, cfg.Session.TTL), cleanup, nil
}

func setupRouter(cfg config.Config, messenger webhook.Messenger, dispatcher *chat.Dispatcher) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger
	// logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	lineHandler := webhook.NewLineWebhookHandler(cfg.Line.ChannelSecret, messenger, dispatcher)
	httprouter.SetupRoutes(router, lineHandler)

	return router
}
