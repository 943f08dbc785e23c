package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the status of a payment (matches DB ENUM)
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	// PaymentStatusReleased means the cancelled payment's money has been
	// returned by the gateway
	PaymentStatusReleased PaymentStatus = "released"
)

// PaymentKind distinguishes trip deposits from event ticket purchases
type PaymentKind string

const (
	PaymentKindTrip  PaymentKind = "trip"
	PaymentKindEvent PaymentKind = "event"
)

// Payment tracks one purchase (trip or event) through its lifecycle.
// Exactly one of TripID/EventID is set.
type Payment struct {
	ID               string        `json:"id"`
	TripID           string        `json:"trip_id,omitempty"`
	EventID          string        `json:"event_id,omitempty"`
	TravelerID       string        `json:"traveler_id"`
	TicketQuantity   int           `json:"ticket_quantity,omitempty"`
	Amount           float64       `json:"amount"`
	Status           PaymentStatus `json:"status"`
	GatewaySessionID string        `json:"gateway_session_id,omitempty"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// NewTripPayment creates a pending payment for a trip
func NewTripPayment(tripID, travelerID string, amount float64) (*Payment, error) {
	if tripID == "" {
		return nil, errors.New("trip_id is required")
	}
	return newPayment("", tripID, travelerID, amount, 0)
}

// NewEventPayment creates a pending payment for an event ticket purchase
func NewEventPayment(eventID, travelerID string, amount float64, quantity int) (*Payment, error) {
	if eventID == "" {
		return nil, errors.New("event_id is required")
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return newPayment(eventID, "", travelerID, amount, quantity)
}

func newPayment(eventID, tripID, travelerID string, amount float64, quantity int) (*Payment, error) {
	if travelerID == "" {
		return nil, errors.New("traveler_id is required")
	}
	if amount < 0 {
		return nil, errors.New("amount cannot be negative")
	}

	now := time.Now().UTC()
	return &Payment{
		ID:             uuid.New().String(),
		TripID:         tripID,
		EventID:        eventID,
		TravelerID:     travelerID,
		TicketQuantity: quantity,
		Amount:         amount,
		Status:         PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Kind returns whether this payment is for a trip or an event
func (p *Payment) Kind() PaymentKind {
	if p.EventID != "" {
		return PaymentKindEvent
	}
	return PaymentKindTrip
}

// MarkPaid transitions PENDING -> PAID exactly once. A second call returns
// ErrPaymentAlreadyPaid so duplicate confirmations (webhook redelivery,
// polling racing the webhook) never re-run side effects.
func (p *Payment) MarkPaid(at time.Time) error {
	switch p.Status {
	case PaymentStatusPaid:
		return ErrPaymentAlreadyPaid
	case PaymentStatusPending:
		at = at.UTC()
		p.Status = PaymentStatusPaid
		p.PaidAt = &at
		p.UpdatedAt = time.Now().UTC()
		return nil
	default:
		return ErrInvalidState
	}
}

// CancelPending transitions PENDING -> CANCELLED. PAID is an idempotency
// floor: an expired-session notification must never undo a completed payment.
func (p *Payment) CancelPending() error {
	if p.Status != PaymentStatusPending {
		return ErrInvalidState
	}
	p.Status = PaymentStatusCancelled
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// CancelPaid transitions PAID -> CANCELLED for a user-initiated cancellation
func (p *Payment) CancelPaid() error {
	if p.Status != PaymentStatusPaid {
		return ErrInvalidState
	}
	p.Status = PaymentStatusCancelled
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkReleased records that the gateway refund for a cancelled payment went
// through
func (p *Payment) MarkReleased() error {
	if p.Status != PaymentStatusCancelled {
		return ErrInvalidState
	}
	p.Status = PaymentStatusReleased
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// AttachGatewaySession binds the checkout session created for this payment
func (p *Payment) AttachGatewaySession(sessionID string) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}
	if p.GatewaySessionID != "" && p.GatewaySessionID != sessionID {
		return ErrDuplicateGatewaySession
	}
	p.GatewaySessionID = sessionID
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// IsFinal returns true if the payment is in a terminal state
func (p *Payment) IsFinal() bool {
	return p.Status == PaymentStatusCancelled || p.Status == PaymentStatusReleased
}
