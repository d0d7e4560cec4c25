package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"engagement-service/internal/cache"
	"engagement-service/internal/config"
	"engagement-service/internal/db"
	"engagement-service/internal/handlers"
	"engagement-service/internal/logging"
	"engagement-service/internal/middleware"
	"engagement-service/internal/observability"
	"engagement-service/internal/points"
	"engagement-service/internal/rabbitmq"
	"engagement-service/internal/repositories"
	"engagement-service/internal/telemetry"
	"engagement-service/internal/ws"
)

const serviceName = "engagement-service"

func main() {
	cfg := config.Load()
	logging.Init(cfg.Env)

	shutdownTracing, err := observability.InitTracing(context.Background(), serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init tracing")
	}
	defer shutdownTracing(context.Background())

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}

	if eventPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Warn().Err(err).Msg("event publishing disabled")
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit.engagement", serviceName, cfg.Env)

	totalsCache := cache.New(cfg.RedisAddr, "engagement:", 5*time.Minute)
	defer totalsCache.Close()

	actionRepo := repositories.NewActionRepo(database)
	pointsRepo := repositories.NewPointsRepo(database)
	roomRepo := repositories.NewRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)

	pointsService := points.NewService(actionRepo, pointsRepo, totalsCache)

	registry := ws.NewRegistry()
	hub := ws.NewHub()
	secret := []byte(cfg.JWTSecret)

	socketHandler := ws.NewHandler(hub, registry, messageRepo, pointsService, secret)
	pointsHandler := handlers.NewPointsHandler(pointsService, audit)
	chatHandler := handlers.NewChatHandler(roomRepo, messageRepo, hub, registry, pointsService)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(secret)
	writeLimit := middleware.RateLimit(rate.Limit(5), 10)

	router.GET("/users/:user_id/points", authMiddleware, pointsHandler.GetPoints)
	router.GET("/users/:user_id/points/total", authMiddleware, pointsHandler.GetTotalPoints)
	router.POST("/users/:user_id/points", authMiddleware, writeLimit, pointsHandler.AwardPoints)

	router.POST("/chat/rooms", authMiddleware, writeLimit, chatHandler.CreateRoom)
	router.GET("/chat/rooms/:room_id/messages", authMiddleware, chatHandler.GetRoomMessages)
	router.POST("/chat/rooms/:room_id/messages", authMiddleware, writeLimit, chatHandler.PostMessage)
	router.POST("/chat/rooms/:room_id/join", authMiddleware, chatHandler.JoinRoom)
	router.POST("/chat/rooms/:room_id/leave", authMiddleware, chatHandler.LeaveRoom)
	router.GET("/chat/messages/:message_id", authMiddleware, chatHandler.GetMessage)
	router.POST("/chat/messages/:message_id/read", authMiddleware, chatHandler.MarkMessageRead)
	router.GET("/chat/messages/unread", authMiddleware, chatHandler.GetUnreadMessages)

	router.GET("/ws", socketHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugEndpoints)

	log.Info().Str("port", cfg.Port).Msg("engagement service listening")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
