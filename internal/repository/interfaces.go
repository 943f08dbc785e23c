package repository

import (
	"context"

	"github.com/roamly/roamly-core/internal/domain"
)

// TxManager scopes a function to a single commit-or-rollback unit. Repository
// calls made with the context passed to fn join that unit.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// PaymentRepository persists payments
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id string) (*domain.Payment, error)
	// GetByIDForUpdate locks the row for the remainder of the transaction
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Payment, error)
	GetByGatewaySessionIDForUpdate(ctx context.Context, sessionID string) (*domain.Payment, error)
	// GetPaidByTripID returns the PAID payment for a trip, if any
	GetPaidByTripID(ctx context.Context, tripID string) (*domain.Payment, error)
	// GetLatestByTripID returns the most recent payment for a trip in any
	// status, for deposit status polling
	GetLatestByTripID(ctx context.Context, tripID string) (*domain.Payment, error)
	Update(ctx context.Context, payment *domain.Payment) error
}

// EventRepository persists events, their ticket inventory and ticket receipts
type EventRepository interface {
	Create(ctx context.Context, event *domain.Event) error
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Event, error)
	// AvailableTickets returns remaining inventory minus quantities held by
	// pending payments. Call after GetByIDForUpdate inside a transaction.
	AvailableTickets(ctx context.Context, eventID string) (int, error)
	// DecrementTickets conditionally subtracts from inventory and fails with
	// ErrInsufficientInventory when the count would go negative
	DecrementTickets(ctx context.Context, eventID string, quantity int) error
	RestoreTickets(ctx context.Context, eventID string, quantity int) error
	CreateTicket(ctx context.Context, ticket *domain.EventTicket) error
	GetTicketByPaymentID(ctx context.Context, paymentID string) (*domain.EventTicket, error)
}

// TripRepository persists trips
type TripRepository interface {
	Create(ctx context.Context, trip *domain.Trip) error
	GetByID(ctx context.Context, id string) (*domain.Trip, error)
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error)
	Update(ctx context.Context, trip *domain.Trip) error
	// FindInProgressByTraveler returns the traveler's IN_PROGRESS trip or
	// (nil, nil) when there is none
	FindInProgressByTraveler(ctx context.Context, travelerID string) (*domain.Trip, error)
	// SetUserTripInProgress flips the denormalized per-user flag read by the
	// rendering layer
	SetUserTripInProgress(ctx context.Context, userID string, inProgress bool) error
}

// VerificationRepository persists trip start verifications, one row per trip
type VerificationRepository interface {
	// Upsert replaces any existing record for the same trip
	Upsert(ctx context.Context, v *domain.TripVerification) error
	GetByTripID(ctx context.Context, tripID string) (*domain.TripVerification, error)
	Update(ctx context.Context, v *domain.TripVerification) error
}
