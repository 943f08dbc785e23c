package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/pkg/kafka"
	"github.com/roamly/roamly-core/pkg/logger"
)

// Kafka topics for downstream consumers (email, guide app, analytics)
const (
	TopicPaymentConfirmed = "roamly.payment.confirmed"
	TopicPaymentExpired   = "roamly.payment.expired"
	TopicTripStarted      = "roamly.trip.started"
)

// KafkaNotifier publishes notifications through Kafka
type KafkaNotifier struct {
	producer *kafka.Producer
}

// NewKafkaNotifier creates a Kafka-backed notifier
func NewKafkaNotifier(producer *kafka.Producer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

// PaymentConfirmed publishes a payment confirmation notification
func (n *KafkaNotifier) PaymentConfirmed(ctx context.Context, payment *domain.Payment) {
	n.publish(ctx, TopicPaymentConfirmed, payment.ID, payment)
}

// PaymentExpired publishes a payment expiry notification
func (n *KafkaNotifier) PaymentExpired(ctx context.Context, payment *domain.Payment) {
	n.publish(ctx, TopicPaymentExpired, payment.ID, payment)
}

// TripStarted publishes a trip start notification
func (n *KafkaNotifier) TripStarted(ctx context.Context, trip *domain.Trip) {
	n.publish(ctx, TopicTripStarted, trip.ID, trip)
}

func (n *KafkaNotifier) publish(ctx context.Context, topic, key string, value any) {
	if err := n.producer.ProduceJSON(ctx, topic, key, value); err != nil {
		logger.Get().Warn("failed to publish notification",
			zap.String("topic", topic),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// NopNotifier drops all notifications, for tests and Kafka-less deployments
type NopNotifier struct{}

func (NopNotifier) PaymentConfirmed(context.Context, *domain.Payment) {}
func (NopNotifier) PaymentExpired(context.Context, *domain.Payment)   {}
func (NopNotifier) TripStarted(context.Context, *domain.Trip)         {}
