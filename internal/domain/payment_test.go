package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventPayment(t *testing.T) {
	p, err := NewEventPayment("event-1", "traveler-1", 40, 2)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPending, p.Status)
	assert.Equal(t, PaymentKindEvent, p.Kind())
	assert.Equal(t, 2, p.TicketQuantity)
	assert.NotEmpty(t, p.ID)
	assert.Nil(t, p.PaidAt)
}

func TestNewEventPayment_Validation(t *testing.T) {
	_, err := NewEventPayment("", "traveler-1", 40, 2)
	assert.Error(t, err)

	_, err = NewEventPayment("event-1", "traveler-1", 40, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewEventPayment("event-1", "traveler-1", -1, 1)
	assert.Error(t, err)
}

func TestPayment_MarkPaid(t *testing.T) {
	p, err := NewTripPayment("trip-1", "traveler-1", 100)
	require.NoError(t, err)
	assert.Equal(t, PaymentKindTrip, p.Kind())

	paidAt := time.Now()
	require.NoError(t, p.MarkPaid(paidAt))
	assert.Equal(t, PaymentStatusPaid, p.Status)
	require.NotNil(t, p.PaidAt)

	// Second confirmation is the documented no-op signal
	err = p.MarkPaid(time.Now())
	assert.ErrorIs(t, err, ErrPaymentAlreadyPaid)
	assert.Equal(t, PaymentStatusPaid, p.Status)
}

func TestPayment_PaidIsTerminalForExpiry(t *testing.T) {
	p, _ := NewEventPayment("event-1", "traveler-1", 40, 2)
	require.NoError(t, p.MarkPaid(time.Now()))

	// A late session-expired notification must never undo PAID
	assert.ErrorIs(t, p.CancelPending(), ErrInvalidState)
	assert.Equal(t, PaymentStatusPaid, p.Status)
}

func TestPayment_CancelAndRelease(t *testing.T) {
	p, _ := NewEventPayment("event-1", "traveler-1", 40, 2)

	// Cannot release or user-cancel before paid
	assert.ErrorIs(t, p.CancelPaid(), ErrInvalidState)
	assert.ErrorIs(t, p.MarkReleased(), ErrInvalidState)

	require.NoError(t, p.MarkPaid(time.Now()))
	require.NoError(t, p.CancelPaid())
	assert.Equal(t, PaymentStatusCancelled, p.Status)
	assert.True(t, p.IsFinal())

	require.NoError(t, p.MarkReleased())
	assert.Equal(t, PaymentStatusReleased, p.Status)

	// A paid transition can never follow a terminal state
	assert.ErrorIs(t, p.MarkPaid(time.Now()), ErrInvalidState)
}

func TestPayment_CancelPendingIsTerminal(t *testing.T) {
	p, _ := NewEventPayment("event-1", "traveler-1", 40, 1)
	require.NoError(t, p.CancelPending())
	assert.ErrorIs(t, p.MarkPaid(time.Now()), ErrInvalidState)
	assert.ErrorIs(t, p.CancelPending(), ErrInvalidState)
}

func TestPayment_AttachGatewaySession(t *testing.T) {
	p, _ := NewEventPayment("event-1", "traveler-1", 40, 1)

	require.NoError(t, p.AttachGatewaySession("cs_1"))
	// Re-attaching the same session is fine, a different one is not
	assert.NoError(t, p.AttachGatewaySession("cs_1"))
	assert.ErrorIs(t, p.AttachGatewaySession("cs_2"), ErrDuplicateGatewaySession)
}
