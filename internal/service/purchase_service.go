package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/internal/gateway"
	"github.com/roamly/roamly-core/internal/metrics"
	"github.com/roamly/roamly-core/internal/repository"
	"github.com/roamly/roamly-core/pkg/logger"
	"github.com/roamly/roamly-core/pkg/retry"
)

// PurchaseServiceConfig holds configuration for the purchase flow
type PurchaseServiceConfig struct {
	Currency   string
	SuccessURL string
	CancelURL  string
	// Retry governs outbound gateway calls
	Retry *retry.Config
}

// purchaseServiceImpl implements PurchaseService
type purchaseServiceImpl struct {
	tx       repository.TxManager
	payments repository.PaymentRepository
	events   repository.EventRepository
	trips    repository.TripRepository
	gateway  gateway.PaymentGateway
	notifier Notifier
	metrics  *metrics.Metrics
	config   *PurchaseServiceConfig
}

// NewPurchaseService creates a new PurchaseService
func NewPurchaseService(
	tx repository.TxManager,
	payments repository.PaymentRepository,
	events repository.EventRepository,
	trips repository.TripRepository,
	gw gateway.PaymentGateway,
	notifier Notifier,
	m *metrics.Metrics,
	config *PurchaseServiceConfig,
) PurchaseService {
	if config == nil {
		config = &PurchaseServiceConfig{Currency: "usd"}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}

	return &purchaseServiceImpl{
		tx:       tx,
		payments: payments,
		events:   events,
		trips:    trips,
		gateway:  gw,
		notifier: notifier,
		metrics:  m,
		config:   config,
	}
}

// PurchaseTickets reserves inventory for the traveler and routes the purchase
// down the free or the gateway path.
//
// Availability is checked under the event row lock and counts pending
// payments as reservations, so two concurrent purchases for the last ticket
// cannot both pass. The gateway call happens after commit; holding a row lock
// across an external HTTP call would serialize every purchase for the event
// on gateway latency.
func (s *purchaseServiceImpl) PurchaseTickets(ctx context.Context, principal domain.Principal, eventID string, quantity int) (*PurchaseResult, error) {
	if principal.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	s.metrics.PurchasesStarted.Inc(ctx)

	var (
		payment *domain.Payment
		event   *domain.Event
		amount  float64
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		event, err = s.events.GetByIDForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if event.HasStarted(time.Now().UTC()) {
			return domain.ErrInvalidState
		}

		amount, err = domain.AmountForPurchase(event.Price, quantity)
		if err != nil {
			return err
		}

		available, err := s.events.AvailableTickets(ctx, eventID)
		if err != nil {
			return err
		}
		if available < quantity {
			return domain.ErrInsufficientInventory
		}

		payment, err = domain.NewEventPayment(eventID, principal.UserID, amount, quantity)
		if err != nil {
			return err
		}

		if amount == 0 {
			return s.confirmFreePurchase(ctx, payment)
		}

		// Paid path: the pending payment is the reservation
		return s.payments.Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PurchaseAmount.Record(ctx, amount)

	if amount == 0 {
		s.metrics.PaymentsConfirmed.Inc(ctx)
		s.metrics.TicketsSold.Add(ctx, int64(quantity))
		s.notifier.PaymentConfirmed(ctx, payment)
		return &PurchaseResult{PaymentID: payment.ID, Status: domain.PaymentStatusPaid}, nil
	}

	session, err := s.createSession(ctx, payment, event.Name)
	if err != nil {
		s.releaseReservation(ctx, payment.ID)
		return nil, err
	}

	return &PurchaseResult{
		PaymentID:  payment.ID,
		Status:     domain.PaymentStatusPending,
		SessionURL: session.URL,
	}, nil
}

// PayTripDeposit creates the pending deposit payment for a trip and hands
// back a checkout session for the quoted amount. One open attempt at a time:
// an earlier pending deposit must expire or fail before a new one is allowed.
func (s *purchaseServiceImpl) PayTripDeposit(ctx context.Context, principal domain.Principal, tripID string, amount float64) (*PurchaseResult, error) {
	if principal.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	if amount < domain.MinChargeAmount {
		return nil, domain.ErrPriceTooLow
	}
	s.metrics.PurchasesStarted.Inc(ctx)

	var payment *domain.Payment
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		trip, err := s.trips.GetByIDForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !trip.IsOwnedBy(principal.UserID) && principal.Role != domain.RoleAdmin {
			return domain.ErrForbidden
		}
		if trip.Status != domain.TripStatusPlanning && trip.Status != domain.TripStatusConfirmed {
			return domain.ErrInvalidState
		}

		latest, err := s.payments.GetLatestByTripID(ctx, tripID)
		if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
			return err
		}
		if latest != nil {
			switch latest.Status {
			case domain.PaymentStatusPaid:
				return domain.ErrPaymentAlreadyPaid
			case domain.PaymentStatusPending:
				return domain.ErrInvalidState
			}
		}

		payment, err = domain.NewTripPayment(tripID, principal.UserID, amount)
		if err != nil {
			return err
		}
		return s.payments.Create(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PurchaseAmount.Record(ctx, amount)

	session, err := s.createSession(ctx, payment, "Trip deposit")
	if err != nil {
		s.releaseReservation(ctx, payment.ID)
		return nil, err
	}

	return &PurchaseResult{
		PaymentID:  payment.ID,
		Status:     domain.PaymentStatusPending,
		SessionURL: session.URL,
	}, nil
}

// confirmFreePurchase completes a zero-amount purchase inside the caller's
// transaction: immediate PAID, decrement, ticket, no gateway involved.
func (s *purchaseServiceImpl) confirmFreePurchase(ctx context.Context, payment *domain.Payment) error {
	if err := payment.MarkPaid(time.Now().UTC()); err != nil {
		return err
	}
	if err := s.payments.Create(ctx, payment); err != nil {
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

// createSession calls the gateway with retries and binds the session id to
// the payment
func (s *purchaseServiceImpl) createSession(ctx context.Context, payment *domain.Payment, productName string) (*gateway.CheckoutSession, error) {
	meta := map[string]string{
		gateway.MetaPaymentID:   payment.ID,
		gateway.MetaTravelerID:  payment.TravelerID,
		gateway.MetaRequesterID: payment.TravelerID,
	}
	if payment.Kind() == domain.PaymentKindEvent {
		meta[gateway.MetaEventID] = payment.EventID
		meta[gateway.MetaQuantity] = strconv.Itoa(payment.TicketQuantity)
	} else {
		meta[gateway.MetaTripID] = payment.TripID
	}

	req := &gateway.CheckoutSessionRequest{
		AmountMinorUnits: domain.MinorUnits(payment.Amount),
		Currency:         s.config.Currency,
		ProductName:      productName,
		Quantity:         1,
		SuccessURL:       s.config.SuccessURL,
		CancelURL:        s.config.CancelURL,
		Metadata:         meta,
	}

	var session *gateway.CheckoutSession
	err := retry.Do(ctx, s.config.Retry, func(ctx context.Context) error {
		var err error
		session, err = s.gateway.CreateCheckoutSession(ctx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByIDForUpdate(ctx, payment.ID)
		if err != nil {
			return err
		}
		if err := p.AttachGatewaySession(session.ID); err != nil {
			return err
		}
		*payment = *p
		return s.payments.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// releaseReservation cancels the pending payment after a gateway failure so
// the held inventory, or the trip's open deposit slot, becomes available
// again
func (s *purchaseServiceImpl) releaseReservation(ctx context.Context, paymentID string) {
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := p.CancelPending(); err != nil {
			return err
		}
		return s.payments.Update(ctx, p)
	})
	if err != nil {
		logger.Get().Error("failed to release reservation",
			zap.String("payment_id", paymentID),
			zap.Error(err),
		)
	}
}

// CancelPurchase cancels a PAID event payment before the event starts. The
// state transition and inventory restore commit first; the refund is a best
// effort side effect that never rolls them back.
func (s *purchaseServiceImpl) CancelPurchase(ctx context.Context, principal domain.Principal, paymentID string) error {
	if principal.UserID == "" {
		return domain.ErrUnauthorized
	}

	var payment *domain.Payment
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.payments.GetByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment.TravelerID != principal.UserID && principal.Role != domain.RoleAdmin {
			return domain.ErrForbidden
		}
		if payment.Kind() != domain.PaymentKindEvent {
			return domain.ErrInvalidState
		}

		event, err := s.events.GetByIDForUpdate(ctx, payment.EventID)
		if err != nil {
			return err
		}
		if event.HasStarted(time.Now().UTC()) {
			return domain.ErrInvalidState
		}

		if err := payment.CancelPaid(); err != nil {
			return err
		}
		if err := s.events.RestoreTickets(ctx, payment.EventID, payment.TicketQuantity); err != nil {
			return err
		}
		return s.payments.Update(ctx, payment)
	})
	if err != nil {
		return err
	}

	s.metrics.PaymentsCancelled.Inc(ctx)
	s.metrics.TicketsRestored.Add(ctx, int64(payment.TicketQuantity))

	s.refundBestEffort(ctx, payment)
	return nil
}

// refundBestEffort issues the refund and, if it goes through, records the
// payment as released. Failures are logged and counted only.
func (s *purchaseServiceImpl) refundBestEffort(ctx context.Context, payment *domain.Payment) {
	if payment.GatewaySessionID == "" {
		return
	}

	err := retry.Do(ctx, s.config.Retry, func(ctx context.Context) error {
		return s.gateway.Refund(ctx, payment.GatewaySessionID, "purchase cancelled")
	})
	if err != nil {
		s.metrics.RefundFailures.Inc(ctx)
		logger.Get().Error("refund failed",
			zap.String("payment_id", payment.ID),
			zap.String("session_id", payment.GatewaySessionID),
			zap.Error(err),
		)
		return
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByIDForUpdate(ctx, payment.ID)
		if err != nil {
			return err
		}
		if err := p.MarkReleased(); err != nil {
			return err
		}
		return s.payments.Update(ctx, p)
	})
	if err != nil {
		logger.Get().Warn("refund sent but release not recorded",
			zap.String("payment_id", payment.ID),
			zap.Error(err),
		)
	}
}

// GetPayment returns the payment for status polling
func (s *purchaseServiceImpl) GetPayment(ctx context.Context, principal domain.Principal, paymentID string) (*domain.Payment, error) {
	if principal.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.TravelerID != principal.UserID && principal.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	return payment, nil
}

// GetTripPayment returns the trip's latest payment so a client can poll the
// deposit it just created
func (s *purchaseServiceImpl) GetTripPayment(ctx context.Context, principal domain.Principal, tripID string) (*domain.Payment, error) {
	if principal.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	payment, err := s.payments.GetLatestByTripID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if payment.TravelerID != principal.UserID && principal.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	return payment, nil
}
