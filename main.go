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

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roamly/roamly-core/internal/di"
	"github.com/roamly/roamly-core/internal/gateway"
	"github.com/roamly/roamly-core/pkg/config"
	"github.com/roamly/roamly-core/pkg/database"
	"github.com/roamly/roamly-core/pkg/kafka"
	"github.com/roamly/roamly-core/pkg/logger"
	"github.com/roamly/roamly-core/pkg/middleware"
	pkgredis "github.com/roamly/roamly-core/pkg/redis"
	"github.com/roamly/roamly-core/pkg/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:       logLevel(cfg),
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting roamly core", zap.String("version", cfg.App.Version))

	ctx := context.Background()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.OTel.ServiceName,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Warn("Telemetry init failed", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	})
	if err != nil {
		appLog.Fatal("Database connection failed", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := pkgredis.NewClient(ctx, &pkgredis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		appLog.Warn("Redis connection failed, idempotency protection disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(&kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			appLog.Warn("Kafka producer init failed, notifications disabled", zap.Error(err))
		} else {
			defer producer.Close()
		}
	}

	paymentGateway := buildGateway(cfg, appLog)

	container, err := di.NewContainer(&di.ContainerConfig{
		Config:        cfg,
		DB:            db,
		Redis:         redisClient,
		KafkaProducer: producer,
		Gateway:       paymentGateway,
	})
	if err != nil {
		appLog.Fatal("Failed to build container", zap.Error(err))
	}

	router := buildRouter(cfg, container, redisClient)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		appLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Forced shutdown", zap.Error(err))
	}
	appLog.Info("Server stopped")
}

// buildGateway picks Stripe when keys are configured, mock otherwise
func buildGateway(cfg *config.Config, appLog *zap.Logger) gateway.PaymentGateway {
	if cfg.Stripe.SecretKey != "" && cfg.Stripe.WebhookSecret != "" {
		gw, err := gateway.NewStripeGateway(&gateway.StripeGatewayConfig{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
		})
		if err == nil {
			appLog.Info("Using Stripe payment gateway")
			return gw
		}
		appLog.Warn("Failed to create Stripe gateway, falling back to mock", zap.Error(err))
	}
	if cfg.IsProduction() {
		appLog.Fatal("Stripe keys are required in production")
	}
	appLog.Info("Using mock payment gateway")
	return gateway.NewMockGateway()
}

func buildRouter(cfg *config.Config, c *di.Container, redisClient *pkgredis.Client) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health/live", c.HealthHandler.Live)
	router.GET("/health/ready", c.HealthHandler.Ready)

	// Webhook is authenticated by signature, not by bearer token
	router.POST("/webhooks/payment", c.WebhookHandler.HandleGatewayWebhook)

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(&middleware.AuthConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	}))

	if redisClient != nil {
		api.Use(middleware.Idempotency(middleware.DefaultIdempotencyConfig(redisClient.Client())))
	}

	api.POST("/events/:id/purchase", c.PurchaseHandler.Purchase)
	api.POST("/events/:id/cancel", c.PurchaseHandler.Cancel)
	api.GET("/payments/:id", c.PurchaseHandler.GetPayment)

	api.POST("/trips", c.TripHandler.Create)
	api.GET("/trips/:id", c.TripHandler.Get)
	api.POST("/trips/:id/pay", c.PurchaseHandler.PayTrip)
	api.GET("/trips/:id/payment", c.PurchaseHandler.GetTripPayment)
	api.POST("/trips/:id/guide", c.TripHandler.AssignGuide)
	api.POST("/trips/:id/confirm", c.TripHandler.Confirm)
	api.POST("/trips/:id/start", c.TripHandler.Start)
	api.POST("/trips/:id/verify", c.TripHandler.Verify)
	api.POST("/trips/:id/complete", c.TripHandler.Complete)
	api.POST("/trips/:id/cancel", c.TripHandler.Cancel)

	return router
}

func logLevel(cfg *config.Config) string {
	if cfg.App.Debug {
		return "debug"
	}
	return "info"
}
