package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/pkg/response"
)

// respondError maps a domain error to its stable HTTP status and code
func respondError(c *gin.Context, err error) {
	var conflict *domain.ConcurrentTripError

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, response.Error("UNAUTHORIZED", "authentication required"))
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, response.Error("FORBIDDEN", "not allowed"))
	case domain.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, response.Error("NOT_FOUND", err.Error()))
	case errors.Is(err, domain.ErrInsufficientInventory):
		c.JSON(http.StatusConflict, response.RetryableError("INSUFFICIENT_INVENTORY", "not enough tickets left"))
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, response.ErrorWithDetails("CONCURRENT_TRIP", "another trip is already in progress",
			gin.H{"conflicting_trip_id": conflict.ConflictingTripID, "retryable": true}))
	case errors.Is(err, domain.ErrPaymentRequired):
		c.JSON(http.StatusPaymentRequired, response.Error("PAYMENT_REQUIRED", "trip has no paid payment"))
	case errors.Is(err, domain.ErrPriceTooLow):
		c.JSON(http.StatusUnprocessableEntity, response.Error("PRICE_TOO_LOW", "amount is below the minimum chargeable amount"))
	case errors.Is(err, domain.ErrUnparseablePrice):
		c.JSON(http.StatusUnprocessableEntity, response.Error("UNPARSEABLE_PRICE", "event price cannot be parsed"))
	case errors.Is(err, domain.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, response.Error("INVALID_QUANTITY", "quantity must be greater than zero"))
	case errors.Is(err, domain.ErrInvalidVerificationCode):
		c.JSON(http.StatusBadRequest, response.Error("INVALID_CODE", "verification code does not match"))
	case errors.Is(err, domain.ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, response.RetryableError("GATEWAY_UNAVAILABLE", "payment gateway unavailable, try again"))
	case domain.IsStateError(err):
		c.JSON(http.StatusConflict, response.Error("INVALID_STATE", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error("INTERNAL_ERROR", "something went wrong"))
	}
}
