package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	// Principal errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Not found errors
	ErrTripNotFound         = errors.New("trip not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrEventNotFound        = errors.New("event not found")
	ErrVerificationNotFound = errors.New("trip verification not found")

	// State errors
	ErrInvalidState       = errors.New("operation not allowed in current state")
	ErrPaymentAlreadyPaid = errors.New("payment already paid")
	ErrPaymentRequired    = errors.New("trip has no paid payment")

	// Inventory errors
	ErrInsufficientInventory = errors.New("insufficient ticket inventory")
	ErrInvalidQuantity       = errors.New("quantity must be greater than zero")

	// Pricing errors
	ErrPriceTooLow      = errors.New("amount is below the gateway minimum charge")
	ErrUnparseablePrice = errors.New("price cannot be parsed")

	// Gateway errors
	ErrInvalidSignature        = errors.New("invalid webhook signature")
	ErrGatewayUnavailable      = errors.New("payment gateway unavailable")
	ErrDuplicateGatewaySession = errors.New("gateway session already attached to a payment")

	// Verification errors
	ErrVerificationExpired     = errors.New("verification code expired")
	ErrInvalidVerificationCode = errors.New("verification code does not match")
)

// ConcurrentTripError is returned when a traveler tries to start a trip while
// another of their trips is already in progress. The conflicting trip id is
// included when known so the client can point the user at it; it is empty
// when the conflict surfaces from the store's uniqueness backstop.
type ConcurrentTripError struct {
	ConflictingTripID string
}

func (e *ConcurrentTripError) Error() string {
	if e.ConflictingTripID == "" {
		return "another trip is already in progress"
	}
	return fmt.Sprintf("another trip is already in progress: %s", e.ConflictingTripID)
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrTripNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrEventNotFound) ||
		errors.Is(err, ErrVerificationNotFound)
}

// IsStateError checks if the error is a state transition error
func IsStateError(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrPaymentAlreadyPaid) ||
		errors.Is(err, ErrVerificationExpired)
}

// IsRetryableByUser checks if the error describes an outcome the user may
// retry rather than a terminal failure
func IsRetryableByUser(err error) bool {
	var conflict *ConcurrentTripError
	return errors.Is(err, ErrInsufficientInventory) ||
		errors.Is(err, ErrGatewayUnavailable) ||
		errors.As(err, &conflict)
}
