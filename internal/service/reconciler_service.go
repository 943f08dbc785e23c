package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/internal/gateway"
	"github.com/roamly/roamly-core/internal/metrics"
	"github.com/roamly/roamly-core/internal/repository"
	"github.com/roamly/roamly-core/pkg/logger"
)

// reconcilerServiceImpl implements ReconcilerService. All state changes run
// inside one transaction per event so a partial failure leaves the payment
// untouched and gateway redelivery can retry the whole thing.
type reconcilerServiceImpl struct {
	tx       repository.TxManager
	payments repository.PaymentRepository
	events   repository.EventRepository
	trips    repository.TripRepository
	notifier Notifier
	metrics  *metrics.Metrics
}

// NewReconcilerService creates a new ReconcilerService
func NewReconcilerService(
	tx repository.TxManager,
	payments repository.PaymentRepository,
	events repository.EventRepository,
	trips repository.TripRepository,
	notifier Notifier,
	m *metrics.Metrics,
) ReconcilerService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &reconcilerServiceImpl{
		tx:       tx,
		payments: payments,
		events:   events,
		trips:    trips,
		notifier: notifier,
		metrics:  m,
	}
}

// HandleEvent dispatches a verified gateway event. The kind set is closed;
// adding a kind means adding a case here.
func (s *reconcilerServiceImpl) HandleEvent(ctx context.Context, event *gateway.GatewayEvent) error {
	s.metrics.WebhookEvents.Inc(ctx, metrics.Kind(event.Kind.String()))

	switch event.Kind {
	case gateway.EventKindSessionCompleted:
		return s.handleSessionCompleted(ctx, event)
	case gateway.EventKindSessionExpired:
		return s.handleSessionExpired(ctx, event)
	case gateway.EventKindUnknown:
		logger.Get().Debug("ignoring gateway event", zap.String("type", event.RawType))
		return nil
	default:
		return fmt.Errorf("unhandled gateway event kind: %v", event.Kind)
	}
}

// handleSessionCompleted marks the payment PAID and applies the purchase side
// effects atomically with the transition. Duplicate deliveries hit the
// already-paid short circuit under the payment row lock and do nothing.
func (s *reconcilerServiceImpl) handleSessionCompleted(ctx context.Context, event *gateway.GatewayEvent) error {
	var (
		payment *domain.Payment
		applied bool
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.payments.GetByGatewaySessionIDForUpdate(ctx, event.SessionID)
		if err != nil {
			if errors.Is(err, domain.ErrPaymentNotFound) {
				// Possibly a session from another product sharing the
				// gateway account
				logger.Get().Info("webhook for unknown session",
					zap.String("session_id", event.SessionID))
				return nil
			}
			return err
		}

		if err := payment.MarkPaid(time.Now().UTC()); err != nil {
			if errors.Is(err, domain.ErrPaymentAlreadyPaid) {
				return nil
			}
			return err
		}
		if err := s.payments.Update(ctx, payment); err != nil {
			return err
		}

		switch payment.Kind() {
		case domain.PaymentKindEvent:
			if err := s.confirmEventPurchase(ctx, payment); err != nil {
				return err
			}
		case domain.PaymentKindTrip:
			if err := s.confirmTripBooking(ctx, payment); err != nil {
				return err
			}
		}

		applied = true
		return nil
	})
	if err != nil {
		return err
	}

	if applied {
		s.metrics.PaymentsConfirmed.Inc(ctx)
		if payment.Kind() == domain.PaymentKindEvent {
			s.metrics.TicketsSold.Add(ctx, int64(payment.TicketQuantity))
		}
		s.notifier.PaymentConfirmed(ctx, payment)
	}
	return nil
}

// confirmEventPurchase converts the pending reservation into sold inventory
// and issues the receipt. The event row lock keeps this serialized with the
// purchase flow touching the same row.
func (s *reconcilerServiceImpl) confirmEventPurchase(ctx context.Context, payment *domain.Payment) error {
	if _, err := s.events.GetByIDForUpdate(ctx, payment.EventID); err != nil {
		return err
	}
	if err := s.events.DecrementTickets(ctx, payment.EventID, payment.TicketQuantity); err != nil {
		return err
	}

	ticket, err := domain.NewEventTicket(payment.EventID, payment.TravelerID, payment.ID, payment.TicketQuantity)
	if err != nil {
		return err
	}
	return s.events.CreateTicket(ctx, ticket)
}

// confirmTripBooking advances the trip's booking sub-state after its deposit
// clears
func (s *reconcilerServiceImpl) confirmTripBooking(ctx context.Context, payment *domain.Payment) error {
	trip, err := s.trips.GetByIDForUpdate(ctx, payment.TripID)
	if err != nil {
		return err
	}
	trip.ConfirmBooking()
	return s.trips.Update(ctx, trip)
}

// handleSessionExpired cancels a still-pending payment. PAID and already
// terminal payments are left alone, so an expiry racing a completion can
// arrive in either order.
func (s *reconcilerServiceImpl) handleSessionExpired(ctx context.Context, event *gateway.GatewayEvent) error {
	var (
		payment   *domain.Payment
		cancelled bool
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.payments.GetByGatewaySessionIDForUpdate(ctx, event.SessionID)
		if err != nil {
			if errors.Is(err, domain.ErrPaymentNotFound) {
				return nil
			}
			return err
		}

		if err := payment.CancelPending(); err != nil {
			if errors.Is(err, domain.ErrInvalidState) {
				logger.Get().Debug("expiry for non-pending payment",
					zap.String("payment_id", payment.ID),
					zap.String("status", string(payment.Status)))
				return nil
			}
			return err
		}
		if err := s.payments.Update(ctx, payment); err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	if err != nil {
		return err
	}

	if cancelled {
		s.metrics.PaymentsCancelled.Inc(ctx)
		s.notifier.PaymentExpired(ctx, payment)
	}
	return nil
}
