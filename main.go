package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/delivery"
	"messaging-service/internal/handlers"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	logger, err := observability.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	shutdownTracing, err := observability.InitTracing(context.Background(), cfg.OTLPEndpoint, "messaging-service", cfg.Env)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	database, err := db.Connect(cfg.DatabaseDSN, logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer database.Close()

	// Lifecycle events exchange; disabled silently when AMQP is absent.
	if eventsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsExchange); err != nil {
		logger.Info("ws event publishing disabled", zap.Error(err))
	} else {
		observability.SetPublisher(eventsPublisher)
		defer eventsPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange, logger)
	defer auditPublisher.Close()
	logger.Info("audit publisher ready", zap.String("mode", rabbitmq.PublisherMode(auditPublisher)))
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, "audit.messaging", "messaging-service", cfg.Env, logger)

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	connectionRepo := repositories.NewConnectionRepo(database)
	userRepo := repositories.NewUserRepo(database)

	hub := ws.NewHub(logger)
	engine := delivery.NewEngine(chatRepo, messageRepo, connectionRepo, userRepo, hub, logger)
	resolver := delivery.NewResolver(chatRepo)

	chatHandler := handlers.NewChatHandler(chatRepo, messageRepo, resolver, logger)
	socketHandler := ws.NewSocketHandler(hub, engine, connectionRepo, userRepo, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("messaging-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		limiter := middleware.NewRateLimiter(redis.NewClient(opts), logger)
		router.Use(limiter.Limit(300, time.Minute))
		logger.Info("rate limiting enabled")
	}

	router.GET("/healthz", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chats := router.Group("/chats")
	if cfg.SessionSecret != "" {
		chats.Use(middleware.SessionMiddleware(cfg.SessionSecret))
	}
	chats.GET("/user_id/:user_id", chatHandler.ListChats)
	chats.GET("/open", chatHandler.OpenChat)
	chats.GET("/chat_id/:chat_id/messages", chatHandler.GetChatMessages)

	router.GET("/ws", socketHandler.Handle)

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	logger.Info("starting messaging service", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := router.Run(":" + cfg.Port); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
