package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is a sellable event with finite ticket inventory. TicketCount is the
// remaining inventory; PAID purchases decrement it, cancellations restore it.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Price       string    `json:"price"`
	TicketCount int       `json:"ticket_count"`
	StartAt     time.Time `json:"start_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasStarted reports whether the event's date has passed
func (e *Event) HasStarted(now time.Time) bool {
	return !e.StartAt.IsZero() && now.After(e.StartAt)
}

// EventTicket is the immutable receipt for a paid (or free) purchase.
// Exactly one ticket exists per confirmed payment.
type EventTicket struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	TravelerID string    `json:"traveler_id"`
	PaymentID  string    `json:"payment_id"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEventTicket creates the receipt for a confirmed payment
func NewEventTicket(eventID, travelerID, paymentID string, quantity int) (*EventTicket, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return &EventTicket{
		ID:         uuid.New().String(),
		EventID:    eventID,
		TravelerID: travelerID,
		PaymentID:  paymentID,
		Quantity:   quantity,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
