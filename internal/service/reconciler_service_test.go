package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/internal/gateway"
)

type reconcilerFixture struct {
	svc      ReconcilerService
	payments *MockPaymentRepository
	events   *MockEventRepository
	trips    *MockTripRepository
	notifier *recordingNotifier
}

func newReconcilerFixture() *reconcilerFixture {
	payments := NewMockPaymentRepository()
	events := NewMockEventRepository(payments)
	trips := NewMockTripRepository()
	notifier := &recordingNotifier{}

	return &reconcilerFixture{
		svc:      NewReconcilerService(&memTxManager{}, payments, events, trips, notifier, testMetrics()),
		payments: payments,
		events:   events,
		trips:    trips,
		notifier: notifier,
	}
}

// seedPendingEventPayment stores an event with inventory and a pending
// payment bound to a gateway session
func (f *reconcilerFixture) seedPendingEventPayment(t *testing.T, tickets, quantity int) *domain.Payment {
	t.Helper()
	event := addEvent(f.events, "20", tickets)
	payment, err := domain.NewEventPayment(event.ID, "traveler-1", 20*float64(quantity), quantity)
	if err != nil {
		t.Fatal(err)
	}
	if err := payment.AttachGatewaySession("cs_test_abc123"); err != nil {
		t.Fatal(err)
	}
	if err := f.payments.Create(context.Background(), payment); err != nil {
		t.Fatal(err)
	}
	return payment
}

func completedEvent(sessionID string) *gateway.GatewayEvent {
	return &gateway.GatewayEvent{Kind: gateway.EventKindSessionCompleted, SessionID: sessionID}
}

func expiredEvent(sessionID string) *gateway.GatewayEvent {
	return &gateway.GatewayEvent{Kind: gateway.EventKindSessionExpired, SessionID: sessionID}
}

func TestHandleEvent_SessionCompleted(t *testing.T) {
	f := newReconcilerFixture()
	payment := f.seedPendingEventPayment(t, 5, 2)
	ctx := context.Background()

	if err := f.svc.HandleEvent(ctx, completedEvent(payment.GatewaySessionID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.payments.GetByID(ctx, payment.ID)
	if stored.Status != domain.PaymentStatusPaid {
		t.Errorf("expected paid, got %s", stored.Status)
	}
	if f.events.TicketCount(payment.EventID) != 3 {
		t.Errorf("expected 3 tickets left, got %d", f.events.TicketCount(payment.EventID))
	}

	ticket, err := f.events.GetTicketByPaymentID(ctx, payment.ID)
	if err != nil {
		t.Fatalf("expected ticket: %v", err)
	}
	if ticket.Quantity != 2 {
		t.Errorf("expected ticket quantity 2, got %d", ticket.Quantity)
	}
	if f.notifier.confirmed != 1 {
		t.Errorf("expected 1 confirmation, got %d", f.notifier.confirmed)
	}
}

func TestHandleEvent_DuplicateCompletionIsNoOp(t *testing.T) {
	f := newReconcilerFixture()
	payment := f.seedPendingEventPayment(t, 5, 2)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := f.svc.HandleEvent(ctx, completedEvent(payment.GatewaySessionID)); err != nil {
			t.Fatalf("delivery %d failed: %v", i+1, err)
		}
	}

	// One decrement, one ticket, one notification, regardless of deliveries
	if f.events.TicketCount(payment.EventID) != 3 {
		t.Errorf("expected 3 tickets left after duplicates, got %d", f.events.TicketCount(payment.EventID))
	}
	if f.notifier.confirmed != 1 {
		t.Errorf("expected 1 confirmation after duplicates, got %d", f.notifier.confirmed)
	}
}

func TestHandleEvent_UnknownSessionIsAcknowledged(t *testing.T) {
	f := newReconcilerFixture()

	if err := f.svc.HandleEvent(context.Background(), completedEvent("cs_foreign")); err != nil {
		t.Fatalf("unknown session must be acknowledged: %v", err)
	}
}

func TestHandleEvent_UnknownKindIsAcknowledged(t *testing.T) {
	f := newReconcilerFixture()

	err := f.svc.HandleEvent(context.Background(), &gateway.GatewayEvent{
		Kind:    gateway.EventKindUnknown,
		RawType: "invoice.created",
	})
	if err != nil {
		t.Fatalf("unknown kind must be acknowledged: %v", err)
	}
}

func TestHandleEvent_SessionExpired(t *testing.T) {
	f := newReconcilerFixture()
	payment := f.seedPendingEventPayment(t, 5, 2)
	ctx := context.Background()

	if err := f.svc.HandleEvent(ctx, expiredEvent(payment.GatewaySessionID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.payments.GetByID(ctx, payment.ID)
	if stored.Status != domain.PaymentStatusCancelled {
		t.Errorf("expected cancelled, got %s", stored.Status)
	}
	// Never decremented, nothing to restore
	if f.events.TicketCount(payment.EventID) != 5 {
		t.Errorf("inventory must be untouched, got %d", f.events.TicketCount(payment.EventID))
	}
	if f.notifier.expired != 1 {
		t.Errorf("expected 1 expiry notification, got %d", f.notifier.expired)
	}
}

func TestHandleEvent_ExpiryAfterCompletionKeepsPaid(t *testing.T) {
	f := newReconcilerFixture()
	payment := f.seedPendingEventPayment(t, 5, 2)
	ctx := context.Background()

	if err := f.svc.HandleEvent(ctx, completedEvent(payment.GatewaySessionID)); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.HandleEvent(ctx, expiredEvent(payment.GatewaySessionID)); err != nil {
		t.Fatalf("late expiry must be absorbed: %v", err)
	}

	stored, _ := f.payments.GetByID(ctx, payment.ID)
	if stored.Status != domain.PaymentStatusPaid {
		t.Errorf("paid is the idempotency floor, got %s", stored.Status)
	}
	if f.events.TicketCount(payment.EventID) != 3 {
		t.Errorf("inventory must stay decremented, got %d", f.events.TicketCount(payment.EventID))
	}
}

func TestHandleEvent_TicketFailurePropagatesForRedelivery(t *testing.T) {
	f := newReconcilerFixture()
	payment := f.seedPendingEventPayment(t, 5, 2)
	ctx := context.Background()

	f.events.ticketErr = errors.New("constraint violation")
	if err := f.svc.HandleEvent(ctx, completedEvent(payment.GatewaySessionID)); err == nil {
		t.Fatal("expected the reconciliation error to propagate")
	}
	if f.notifier.confirmed != 0 {
		t.Error("no notification on a failed reconciliation")
	}
}

func TestHandleEvent_TripPaymentConfirmsBooking(t *testing.T) {
	f := newReconcilerFixture()
	ctx := context.Background()

	trip, err := domain.NewTrip("traveler-1", time.Now(), time.Now().Add(48*time.Hour), 2, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	f.trips.AddTrip(trip)

	payment, err := domain.NewTripPayment(trip.ID, "traveler-1", 100)
	if err != nil {
		t.Fatal(err)
	}
	_ = payment.AttachGatewaySession("cs_test_trip")
	_ = f.payments.Create(ctx, payment)

	if err := f.svc.HandleEvent(ctx, completedEvent("cs_test_trip")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := f.trips.GetByID(ctx, trip.ID)
	if stored.BookingStatus != domain.BookingStatusConfirmed {
		t.Errorf("expected booking confirmed, got %s", stored.BookingStatus)
	}
}
