package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TripStatus is the primary lifecycle of a trip
type TripStatus string

const (
	TripStatusPlanning   TripStatus = "PLANNING"
	TripStatusConfirmed  TripStatus = "CONFIRMED"
	TripStatusInProgress TripStatus = "IN_PROGRESS"
	TripStatusCompleted  TripStatus = "COMPLETED"
	TripStatusCancelled  TripStatus = "CANCELLED"
)

// BookingStatus is the guide-booking sub-state of a trip
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusAccepted  BookingStatus = "ACCEPTED"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Trip is a traveler's planned journey. DailyItinerary is an opaque payload
// produced by the itinerary generator and is never interpreted here.
type Trip struct {
	ID             string          `json:"id"`
	TravelerID     string          `json:"traveler_id"`
	GuideID        string          `json:"guide_id,omitempty"`
	FromDate       time.Time       `json:"from_date"`
	ToDate         time.Time       `json:"to_date"`
	NumberOfPeople int             `json:"number_of_people"`
	Status         TripStatus      `json:"status"`
	BookingStatus  BookingStatus   `json:"booking_status"`
	DailyItinerary json.RawMessage `json:"daily_itinerary,omitempty"`
	NeedsGuide     bool            `json:"needs_guide"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewTrip creates a trip in PLANNING with booking PENDING
func NewTrip(travelerID string, fromDate, toDate time.Time, people int, itinerary json.RawMessage, needsGuide bool) (*Trip, error) {
	if travelerID == "" {
		return nil, errors.New("traveler_id is required")
	}
	if people <= 0 {
		return nil, errors.New("number_of_people must be greater than zero")
	}
	if toDate.Before(fromDate) {
		return nil, errors.New("to_date cannot be before from_date")
	}

	now := time.Now().UTC()
	return &Trip{
		ID:             uuid.New().String(),
		TravelerID:     travelerID,
		FromDate:       fromDate,
		ToDate:         toDate,
		NumberOfPeople: people,
		Status:         TripStatusPlanning,
		BookingStatus:  BookingStatusPending,
		DailyItinerary: itinerary,
		NeedsGuide:     needsGuide,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// AssignGuide binds a guide while the trip is still PLANNING
func (t *Trip) AssignGuide(guideID string) error {
	if guideID == "" {
		return errors.New("guide_id is required")
	}
	if t.Status != TripStatusPlanning {
		return ErrInvalidState
	}
	t.GuideID = guideID
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Confirm transitions PLANNING -> CONFIRMED once the traveler accepts the plan
func (t *Trip) Confirm() error {
	if t.Status != TripStatusPlanning {
		return ErrInvalidState
	}
	t.Status = TripStatusConfirmed
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Start transitions CONFIRMED -> IN_PROGRESS. Booking status only ever moves
// forward: it advances to ACCEPTED from PENDING but a later sub-state
// (CONFIRMED after payment) is kept as is.
func (t *Trip) Start() error {
	if t.Status != TripStatusConfirmed {
		return ErrInvalidState
	}
	t.Status = TripStatusInProgress
	if t.BookingStatus == BookingStatusPending {
		t.BookingStatus = BookingStatusAccepted
	}
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete transitions IN_PROGRESS -> COMPLETED
func (t *Trip) Complete() error {
	if t.Status != TripStatusInProgress {
		return ErrInvalidState
	}
	t.Status = TripStatusCompleted
	t.BookingStatus = BookingStatusCompleted
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel is only reachable before the trip starts
func (t *Trip) Cancel() error {
	if t.Status != TripStatusPlanning && t.Status != TripStatusConfirmed {
		return ErrInvalidState
	}
	t.Status = TripStatusCancelled
	t.BookingStatus = BookingStatusCancelled
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// ConfirmBooking advances the booking sub-state after a trip payment clears
func (t *Trip) ConfirmBooking() {
	if t.BookingStatus == BookingStatusPending || t.BookingStatus == BookingStatusAccepted {
		t.BookingStatus = BookingStatusConfirmed
		t.UpdatedAt = time.Now().UTC()
	}
}

// IsOwnedBy reports whether the trip belongs to the given traveler
func (t *Trip) IsOwnedBy(travelerID string) bool {
	return t.TravelerID == travelerID
}
