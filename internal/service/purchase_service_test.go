package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/internal/gateway"
	"github.com/roamly/roamly-core/pkg/retry"
)

func newPurchaseFixture() (PurchaseService, *MockPaymentRepository, *MockEventRepository, *gateway.MockGateway, *recordingNotifier) {
	svc, payments, events, _, gw, notifier := newDepositFixture()
	return svc, payments, events, gw, notifier
}

// newDepositFixture also exposes the trip store for the deposit flow tests
func newDepositFixture() (PurchaseService, *MockPaymentRepository, *MockEventRepository, *MockTripRepository, *gateway.MockGateway, *recordingNotifier) {
	payments := NewMockPaymentRepository()
	events := NewMockEventRepository(payments)
	trips := NewMockTripRepository()
	gw := gateway.NewMockGateway()
	notifier := &recordingNotifier{}

	svc := NewPurchaseService(&memTxManager{}, payments, events, trips, gw, notifier, testMetrics(), &PurchaseServiceConfig{
		Currency:   "usd",
		SuccessURL: "http://localhost/success",
		CancelURL:  "http://localhost/cancel",
		Retry:      &retry.Config{MaxRetries: 0},
	})
	return svc, payments, events, trips, gw, notifier
}

func addEvent(events *MockEventRepository, price string, tickets int) *domain.Event {
	event := &domain.Event{
		ID:          uuid.New().String(),
		Name:        "City Walking Tour",
		Price:       price,
		TicketCount: tickets,
		StartAt:     time.Now().Add(72 * time.Hour),
	}
	events.AddEvent(event)
	return event
}

var traveler = domain.Principal{UserID: "traveler-1", Role: domain.RoleTraveler}

func TestPurchaseTickets_PaidEvent(t *testing.T) {
	svc, payments, events, gw, _ := newPurchaseFixture()
	event := addEvent(events, "$25.00 per person", 10)
	ctx := context.Background()

	result, err := svc.PurchaseTickets(ctx, traveler, event.ID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.PaymentStatusPending {
		t.Errorf("expected pending status, got %s", result.Status)
	}
	if result.SessionURL == "" {
		t.Error("expected a checkout session url")
	}

	payment, err := payments.GetByID(ctx, result.PaymentID)
	if err != nil {
		t.Fatalf("payment not stored: %v", err)
	}
	if payment.Amount != 50 {
		t.Errorf("expected amount 50, got %v", payment.Amount)
	}
	if payment.GatewaySessionID == "" {
		t.Error("expected gateway session to be attached")
	}

	req, ok := gw.SessionRequest(payment.GatewaySessionID)
	if !ok {
		t.Fatal("session not recorded by gateway")
	}
	if req.AmountMinorUnits != 5000 {
		t.Errorf("expected 5000 minor units, got %d", req.AmountMinorUnits)
	}
	if req.Metadata[gateway.MetaPaymentID] != payment.ID {
		t.Error("metadata missing payment id")
	}

	// Inventory stays put until the webhook confirms
	if events.TicketCount(event.ID) != 10 {
		t.Errorf("inventory must not change before payment, got %d", events.TicketCount(event.ID))
	}
}

func TestPurchaseTickets_FreeEvent(t *testing.T) {
	svc, payments, events, _, notifier := newPurchaseFixture()
	event := addEvent(events, "Free", 5)
	ctx := context.Background()

	result, err := svc.PurchaseTickets(ctx, traveler, event.ID, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.PaymentStatusPaid {
		t.Errorf("expected immediate paid status, got %s", result.Status)
	}
	if result.SessionURL != "" {
		t.Error("free purchase must not create a checkout session")
	}

	if events.TicketCount(event.ID) != 3 {
		t.Errorf("expected 3 tickets left, got %d", events.TicketCount(event.ID))
	}

	ticket, err := events.GetTicketByPaymentID(ctx, result.PaymentID)
	if err != nil {
		t.Fatalf("expected ticket: %v", err)
	}
	if ticket.Quantity != 2 {
		t.Errorf("expected ticket quantity 2, got %d", ticket.Quantity)
	}

	payment, _ := payments.GetByID(ctx, result.PaymentID)
	if payment.PaidAt == nil {
		t.Error("expected paid_at to be set")
	}
	if notifier.confirmed != 1 {
		t.Errorf("expected 1 confirmation notification, got %d", notifier.confirmed)
	}
}

func TestPurchaseTickets_PriceTooLow(t *testing.T) {
	svc, _, events, gw, _ := newPurchaseFixture()
	event := addEvent(events, "0.30", 5)

	_, err := svc.PurchaseTickets(context.Background(), traveler, event.ID, 1)
	if !errors.Is(err, domain.ErrPriceTooLow) {
		t.Fatalf("expected ErrPriceTooLow, got %v", err)
	}
	if _, ok := gw.SessionRequest(""); ok {
		t.Error("gateway must not be contacted")
	}
}

func TestPurchaseTickets_InvalidQuantity(t *testing.T) {
	svc, _, events, _, _ := newPurchaseFixture()
	event := addEvent(events, "10", 5)

	_, err := svc.PurchaseTickets(context.Background(), traveler, event.ID, 0)
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestPurchaseTickets_PendingReservationBlocksOversell(t *testing.T) {
	svc, _, events, _, _ := newPurchaseFixture()
	event := addEvent(events, "20", 1)
	ctx := context.Background()

	if _, err := svc.PurchaseTickets(ctx, traveler, event.ID, 1); err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}

	other := domain.Principal{UserID: "traveler-2", Role: domain.RoleTraveler}
	_, err := svc.PurchaseTickets(ctx, other, event.ID, 1)
	if !errors.Is(err, domain.ErrInsufficientInventory) {
		t.Fatalf("expected ErrInsufficientInventory, got %v", err)
	}
}

func TestPurchaseTickets_ConcurrentLastTicket(t *testing.T) {
	svc, _, events, _, _ := newPurchaseFixture()
	event := addEvent(events, "20", 1)
	ctx := context.Background()

	const buyers = 8
	var wg sync.WaitGroup
	results := make([]error, buyers)

	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := domain.Principal{UserID: uuid.New().String(), Role: domain.RoleTraveler}
			_, results[i] = svc.PurchaseTickets(ctx, p, event.ID, 1)
		}(i)
	}
	wg.Wait()

	var succeeded, soldOut int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientInventory):
			soldOut++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("exactly one purchase must win, got %d", succeeded)
	}
	if soldOut != buyers-1 {
		t.Errorf("expected %d sold-out failures, got %d", buyers-1, soldOut)
	}
}

func TestPurchaseTickets_GatewayFailureReleasesReservation(t *testing.T) {
	svc, _, events, gw, _ := newPurchaseFixture()
	event := addEvent(events, "20", 1)
	gw.FailCheckout = true
	ctx := context.Background()

	_, err := svc.PurchaseTickets(ctx, traveler, event.ID, 1)
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}

	// The reservation must be gone so the next buyer can take the ticket
	gw.FailCheckout = false
	other := domain.Principal{UserID: "traveler-2", Role: domain.RoleTraveler}
	if _, err := svc.PurchaseTickets(ctx, other, event.ID, 1); err != nil {
		t.Fatalf("reservation was not released: %v", err)
	}
}

func TestCancelPurchase_RoundTrip(t *testing.T) {
	svc, payments, events, gw, _ := newPurchaseFixture()
	event := addEvent(events, "20", 5)
	ctx := context.Background()

	result, err := svc.PurchaseTickets(ctx, traveler, event.ID, 2)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	// Simulate the webhook outcome: paid, inventory decremented
	payment, _ := payments.GetByID(ctx, result.PaymentID)
	if err := payment.MarkPaid(time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := payments.Update(ctx, payment); err != nil {
		t.Fatal(err)
	}
	if err := events.DecrementTickets(ctx, event.ID, 2); err != nil {
		t.Fatal(err)
	}

	if err := svc.CancelPurchase(ctx, traveler, payment.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if events.TicketCount(event.ID) != 5 {
		t.Errorf("expected inventory restored to 5, got %d", events.TicketCount(event.ID))
	}
	if !gw.Refunded(payment.GatewaySessionID) {
		t.Error("expected a refund to be issued")
	}

	// Refund went through, so the payment ends up released
	payment, _ = payments.GetByID(ctx, payment.ID)
	if payment.Status != domain.PaymentStatusReleased {
		t.Errorf("expected released status, got %s", payment.Status)
	}

	// Second cancellation is an invalid transition
	err = svc.CancelPurchase(ctx, traveler, payment.ID)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double cancel, got %v", err)
	}
}

func TestCancelPurchase_RefundFailureKeepsCancelled(t *testing.T) {
	svc, payments, events, gw, _ := newPurchaseFixture()
	event := addEvent(events, "20", 5)
	ctx := context.Background()

	result, err := svc.PurchaseTickets(ctx, traveler, event.ID, 1)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	payment, _ := payments.GetByID(ctx, result.PaymentID)
	_ = payment.MarkPaid(time.Now())
	_ = payments.Update(ctx, payment)
	_ = events.DecrementTickets(ctx, event.ID, 1)

	gw.FailRefund = true
	if err := svc.CancelPurchase(ctx, traveler, payment.ID); err != nil {
		t.Fatalf("refund failure must not fail the cancellation: %v", err)
	}

	payment, _ = payments.GetByID(ctx, payment.ID)
	if payment.Status != domain.PaymentStatusCancelled {
		t.Errorf("expected cancelled status, got %s", payment.Status)
	}
	if events.TicketCount(event.ID) != 5 {
		t.Errorf("expected inventory restored, got %d", events.TicketCount(event.ID))
	}
}

func TestCancelPurchase_Forbidden(t *testing.T) {
	svc, payments, events, _, _ := newPurchaseFixture()
	event := addEvent(events, "20", 5)
	ctx := context.Background()

	result, err := svc.PurchaseTickets(ctx, traveler, event.ID, 1)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	payment, _ := payments.GetByID(ctx, result.PaymentID)
	_ = payment.MarkPaid(time.Now())
	_ = payments.Update(ctx, payment)

	stranger := domain.Principal{UserID: "someone-else", Role: domain.RoleTraveler}
	if err := svc.CancelPurchase(ctx, stranger, payment.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCancelPurchase_EventAlreadyStarted(t *testing.T) {
	svc, payments, events, _, _ := newPurchaseFixture()
	event := addEvent(events, "20", 5)
	ctx := context.Background()

	result, err := svc.PurchaseTickets(ctx, traveler, event.ID, 1)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	payment, _ := payments.GetByID(ctx, result.PaymentID)
	_ = payment.MarkPaid(time.Now())
	_ = payments.Update(ctx, payment)

	// Move the event into the past
	event.StartAt = time.Now().Add(-time.Hour)
	events.AddEvent(event)

	if err := svc.CancelPurchase(ctx, traveler, payment.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState for a started event, got %v", err)
	}
}

func addPlannedTrip(t *testing.T, trips *MockTripRepository, travelerID string) *domain.Trip {
	t.Helper()
	trip, err := domain.NewTrip(travelerID, time.Now(), time.Now().Add(48*time.Hour), 2, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	trips.AddTrip(trip)
	return trip
}

func TestPayTripDeposit(t *testing.T) {
	svc, payments, _, trips, gw, _ := newDepositFixture()
	trip := addPlannedTrip(t, trips, "traveler-1")
	ctx := context.Background()

	result, err := svc.PayTripDeposit(ctx, traveler, trip.ID, 120)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.PaymentStatusPending {
		t.Errorf("expected pending status, got %s", result.Status)
	}
	if result.SessionURL == "" {
		t.Error("expected a checkout session url")
	}

	payment, err := payments.GetByID(ctx, result.PaymentID)
	if err != nil {
		t.Fatalf("payment not stored: %v", err)
	}
	if payment.TripID != trip.ID {
		t.Errorf("expected payment bound to trip %s, got %q", trip.ID, payment.TripID)
	}
	if payment.Amount != 120 {
		t.Errorf("expected amount 120, got %v", payment.Amount)
	}

	req, ok := gw.SessionRequest(payment.GatewaySessionID)
	if !ok {
		t.Fatal("session not recorded by gateway")
	}
	if req.AmountMinorUnits != 12000 {
		t.Errorf("expected 12000 minor units, got %d", req.AmountMinorUnits)
	}
	if req.Metadata[gateway.MetaTripID] != trip.ID {
		t.Error("metadata missing trip id")
	}
	if _, ok := req.Metadata[gateway.MetaEventID]; ok {
		t.Error("trip deposit must not carry an event id")
	}
}

func TestPayTripDeposit_Preconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("below minimum", func(t *testing.T) {
		svc, _, _, trips, gw, _ := newDepositFixture()
		trip := addPlannedTrip(t, trips, "traveler-1")
		if _, err := svc.PayTripDeposit(ctx, traveler, trip.ID, 0.30); !errors.Is(err, domain.ErrPriceTooLow) {
			t.Fatalf("expected ErrPriceTooLow, got %v", err)
		}
		if _, ok := gw.SessionRequest(""); ok {
			t.Error("gateway must not be contacted")
		}
	})

	t.Run("not owner", func(t *testing.T) {
		svc, _, _, trips, _, _ := newDepositFixture()
		trip := addPlannedTrip(t, trips, "traveler-1")
		stranger := domain.Principal{UserID: "someone-else", Role: domain.RoleTraveler}
		if _, err := svc.PayTripDeposit(ctx, stranger, trip.ID, 100); !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("cancelled trip", func(t *testing.T) {
		svc, _, _, trips, _, _ := newDepositFixture()
		trip := addPlannedTrip(t, trips, "traveler-1")
		stored, _ := trips.GetByID(ctx, trip.ID)
		_ = stored.Cancel()
		_ = trips.Update(ctx, stored)
		if _, err := svc.PayTripDeposit(ctx, traveler, trip.ID, 100); !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		svc, _, _, _, _, _ := newDepositFixture()
		if _, err := svc.PayTripDeposit(ctx, traveler, "missing", 100); !errors.Is(err, domain.ErrTripNotFound) {
			t.Fatalf("expected ErrTripNotFound, got %v", err)
		}
	})
}

func TestPayTripDeposit_OneOpenAttempt(t *testing.T) {
	svc, payments, _, trips, _, _ := newDepositFixture()
	trip := addPlannedTrip(t, trips, "traveler-1")
	ctx := context.Background()

	first, err := svc.PayTripDeposit(ctx, traveler, trip.ID, 100)
	if err != nil {
		t.Fatalf("first deposit failed: %v", err)
	}

	// A second attempt while the first is still pending is rejected
	if _, err := svc.PayTripDeposit(ctx, traveler, trip.ID, 100); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState while pending, got %v", err)
	}

	// Once paid, further deposits are rejected as already paid
	payment, _ := payments.GetByID(ctx, first.PaymentID)
	_ = payment.MarkPaid(time.Now())
	_ = payments.Update(ctx, payment)
	if _, err := svc.PayTripDeposit(ctx, traveler, trip.ID, 100); !errors.Is(err, domain.ErrPaymentAlreadyPaid) {
		t.Fatalf("expected ErrPaymentAlreadyPaid, got %v", err)
	}
}

func TestPayTripDeposit_GatewayFailureCancelsAttempt(t *testing.T) {
	svc, _, _, trips, gw, _ := newDepositFixture()
	trip := addPlannedTrip(t, trips, "traveler-1")
	gw.FailCheckout = true
	ctx := context.Background()

	_, err := svc.PayTripDeposit(ctx, traveler, trip.ID, 100)
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}

	// The failed attempt is cancelled, so a retry may open a fresh one
	gw.FailCheckout = false
	if _, err := svc.PayTripDeposit(ctx, traveler, trip.ID, 100); err != nil {
		t.Fatalf("failed attempt was not released: %v", err)
	}
}

func TestPayTripDeposit_WebhookConfirmsBooking(t *testing.T) {
	svc, payments, events, trips, _, _ := newDepositFixture()
	trip := addPlannedTrip(t, trips, "traveler-1")
	ctx := context.Background()

	result, err := svc.PayTripDeposit(ctx, traveler, trip.ID, 150)
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	payment, _ := payments.GetByID(ctx, result.PaymentID)

	reconciler := NewReconcilerService(&memTxManager{}, payments, events, trips, nil, testMetrics())
	err = reconciler.HandleEvent(ctx, &gateway.GatewayEvent{
		Kind:      gateway.EventKindSessionCompleted,
		SessionID: payment.GatewaySessionID,
	})
	if err != nil {
		t.Fatalf("reconciliation failed: %v", err)
	}

	stored, _ := trips.GetByID(ctx, trip.ID)
	if stored.BookingStatus != domain.BookingStatusConfirmed {
		t.Errorf("expected booking CONFIRMED, got %s", stored.BookingStatus)
	}
	if _, err := svc.GetTripPayment(ctx, traveler, trip.ID); err != nil {
		t.Errorf("deposit must be visible to the poll: %v", err)
	}
}

func TestGetTripPayment_Ownership(t *testing.T) {
	svc, _, _, trips, _, _ := newDepositFixture()
	trip := addPlannedTrip(t, trips, "traveler-1")
	ctx := context.Background()

	if _, err := svc.GetTripPayment(ctx, traveler, trip.ID); !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound before any deposit, got %v", err)
	}

	if _, err := svc.PayTripDeposit(ctx, traveler, trip.ID, 100); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}

	payment, err := svc.GetTripPayment(ctx, traveler, trip.ID)
	if err != nil {
		t.Fatalf("owner must see the deposit: %v", err)
	}
	if payment.Status != domain.PaymentStatusPending {
		t.Errorf("expected pending deposit, got %s", payment.Status)
	}

	stranger := domain.Principal{UserID: "someone-else", Role: domain.RoleTraveler}
	if _, err := svc.GetTripPayment(ctx, stranger, trip.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestGetPayment_Ownership(t *testing.T) {
	svc, _, events, _, _ := newPurchaseFixture()
	event := addEvent(events, "20", 5)
	ctx := context.Background()

	result, err := svc.PurchaseTickets(ctx, traveler, event.ID, 1)
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	if _, err := svc.GetPayment(ctx, traveler, result.PaymentID); err != nil {
		t.Errorf("owner must see the payment: %v", err)
	}

	stranger := domain.Principal{UserID: "someone-else", Role: domain.RoleTraveler}
	if _, err := svc.GetPayment(ctx, stranger, result.PaymentID); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	admin := domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin}
	if _, err := svc.GetPayment(ctx, admin, result.PaymentID); err != nil {
		t.Errorf("admin must see the payment: %v", err)
	}
}
