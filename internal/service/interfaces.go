package service

import (
	"context"
	"time"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/internal/gateway"
)

// PurchaseResult is the outcome of a ticket purchase. Free events complete
// immediately; paid events hand back a checkout URL for the traveler.
type PurchaseResult struct {
	PaymentID  string               `json:"payment_id"`
	Status     domain.PaymentStatus `json:"status"`
	SessionURL string               `json:"session_url,omitempty"`
}

// PurchaseService handles event ticket purchases, trip deposits and
// cancellations
type PurchaseService interface {
	// PurchaseTickets reserves inventory and either confirms immediately
	// (free event) or creates a gateway checkout session
	PurchaseTickets(ctx context.Context, principal domain.Principal, eventID string, quantity int) (*PurchaseResult, error)
	// PayTripDeposit creates a pending trip payment and a checkout session
	// for the quoted amount. The booking confirms when the webhook clears it.
	PayTripDeposit(ctx context.Context, principal domain.Principal, tripID string, amount float64) (*PurchaseResult, error)
	// CancelPurchase cancels a PAID event payment before the event starts,
	// restores inventory and issues a best-effort refund
	CancelPurchase(ctx context.Context, principal domain.Principal, paymentID string) error
	// GetPayment is the polling companion to the webhook path
	GetPayment(ctx context.Context, principal domain.Principal, paymentID string) (*domain.Payment, error)
	// GetTripPayment returns the trip's most recent payment in any status
	GetTripPayment(ctx context.Context, principal domain.Principal, tripID string) (*domain.Payment, error)
}

// CreateTripRequest carries the itinerary handed over by the generator
type CreateTripRequest struct {
	FromDate       time.Time `json:"from_date"`
	ToDate         time.Time `json:"to_date"`
	NumberOfPeople int       `json:"number_of_people"`
	DailyItinerary []byte    `json:"daily_itinerary"`
	NeedsGuide     bool      `json:"needs_guide"`
}

// StartTripResult is returned to the traveler when a trip begins
type StartTripResult struct {
	OTP       string    `json:"otp"`
	ExpiresAt time.Time `json:"expires_at"`
	// GuideID identifies the assigned guide; contact details are resolved
	// against the profile service, which owns them
	GuideID string `json:"guide_id,omitempty"`
}

// TripService owns the trip lifecycle
type TripService interface {
	CreateTrip(ctx context.Context, principal domain.Principal, req *CreateTripRequest) (*domain.Trip, error)
	GetTrip(ctx context.Context, principal domain.Principal, tripID string) (*domain.Trip, error)
	AssignGuide(ctx context.Context, principal domain.Principal, tripID, guideID string) (*domain.Trip, error)
	ConfirmTrip(ctx context.Context, principal domain.Principal, tripID string) (*domain.Trip, error)
	// StartTrip moves a CONFIRMED, paid trip to IN_PROGRESS and mints the
	// start verification
	StartTrip(ctx context.Context, principal domain.Principal, tripID string, lat, lng float64) (*StartTripResult, error)
	// VerifyStart is called by the guide with the traveler's code
	VerifyStart(ctx context.Context, principal domain.Principal, tripID, code string, lat, lng float64) (*domain.TripVerification, error)
	CompleteTrip(ctx context.Context, principal domain.Principal, tripID string) (*domain.Trip, error)
	CancelTrip(ctx context.Context, principal domain.Principal, tripID string) (*domain.Trip, error)
}

// ReconcilerService is the single entry point for verified gateway events
type ReconcilerService interface {
	HandleEvent(ctx context.Context, event *gateway.GatewayEvent) error
}

// Notifier publishes domain notifications after state has committed. Failures
// are logged, never propagated.
type Notifier interface {
	PaymentConfirmed(ctx context.Context, payment *domain.Payment)
	PaymentExpired(ctx context.Context, payment *domain.Payment)
	TripStarted(ctx context.Context, trip *domain.Trip)
}
