package di

import (
	"fmt"

	"github.com/roamly/roamly-core/internal/gateway"
	"github.com/roamly/roamly-core/internal/handler"
	"github.com/roamly/roamly-core/internal/metrics"
	"github.com/roamly/roamly-core/internal/repository"
	"github.com/roamly/roamly-core/internal/service"
	"github.com/roamly/roamly-core/pkg/config"
	"github.com/roamly/roamly-core/pkg/database"
	"github.com/roamly/roamly-core/pkg/kafka"
	"github.com/roamly/roamly-core/pkg/redis"
)

// Container holds all wired dependencies
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Gateways
	PaymentGateway gateway.PaymentGateway

	// Repositories
	PaymentRepo      repository.PaymentRepository
	EventRepo        repository.EventRepository
	TripRepo         repository.TripRepository
	VerificationRepo repository.VerificationRepository

	// Services
	PurchaseService   service.PurchaseService
	TripService       service.TripService
	ReconcilerService service.ReconcilerService

	// Handlers
	HealthHandler   *handler.HealthHandler
	PurchaseHandler *handler.PurchaseHandler
	TripHandler     *handler.TripHandler
	WebhookHandler  *handler.WebhookHandler

	Metrics *metrics.Metrics
}

// ContainerConfig contains the externally constructed pieces
type ContainerConfig struct {
	Config        *config.Config
	DB            *database.PostgresDB
	Redis         *redis.Client
	KafkaProducer *kafka.Producer
	Gateway       gateway.PaymentGateway
}

// NewContainer wires repositories, services and handlers
func NewContainer(cfg *ContainerConfig) (*Container, error) {
	m, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		PaymentGateway: cfg.Gateway,
		Metrics:        m,
	}

	c.PaymentRepo = repository.NewPostgresPaymentRepository(cfg.DB)
	c.EventRepo = repository.NewPostgresEventRepository(cfg.DB)
	c.TripRepo = repository.NewPostgresTripRepository(cfg.DB)
	c.VerificationRepo = repository.NewPostgresVerificationRepository(cfg.DB)

	var notifier service.Notifier = service.NopNotifier{}
	if cfg.KafkaProducer != nil {
		notifier = service.NewKafkaNotifier(cfg.KafkaProducer)
	}

	c.PurchaseService = service.NewPurchaseService(
		cfg.DB, c.PaymentRepo, c.EventRepo, c.TripRepo, cfg.Gateway, notifier, m,
		&service.PurchaseServiceConfig{
			Currency:   cfg.Config.Stripe.Currency,
			SuccessURL: cfg.Config.Stripe.SuccessURL,
			CancelURL:  cfg.Config.Stripe.CancelURL,
		},
	)
	c.TripService = service.NewTripService(
		cfg.DB, c.TripRepo, c.PaymentRepo, c.VerificationRepo, notifier, m,
	)
	c.ReconcilerService = service.NewReconcilerService(
		cfg.DB, c.PaymentRepo, c.EventRepo, c.TripRepo, notifier, m,
	)

	c.HealthHandler = handler.NewHealthHandler(cfg.DB, cfg.Redis)
	c.PurchaseHandler = handler.NewPurchaseHandler(c.PurchaseService)
	c.TripHandler = handler.NewTripHandler(c.TripService)
	c.WebhookHandler = handler.NewWebhookHandler(cfg.Gateway, c.ReconcilerService)

	return c, nil
}
