package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MinChargeAmount is the smallest amount the payment gateway accepts, in
// major currency units (Stripe's documented minimum for USD-like currencies).
// Anything between zero and this is rejected before the gateway is contacted.
const MinChargeAmount = 0.50

var priceToken = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParsePrice extracts a numeric unit price from a free-text price field.
// The literal "free" (any case) is zero; otherwise the first numeric token
// is taken, so "$25.00 per person" parses as 25.
func ParsePrice(price string) (float64, error) {
	trimmed := strings.TrimSpace(price)
	if strings.EqualFold(trimmed, "free") {
		return 0, nil
	}

	token := priceToken.FindString(trimmed)
	if token == "" {
		return 0, ErrUnparseablePrice
	}

	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, ErrUnparseablePrice
	}
	return value, nil
}

// AmountForPurchase computes the chargeable amount for a quantity of tickets.
// A zero amount means the purchase bypasses the gateway entirely; a non-zero
// amount below the gateway minimum fails with ErrPriceTooLow.
func AmountForPurchase(price string, quantity int) (float64, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	unit, err := ParsePrice(price)
	if err != nil {
		return 0, err
	}

	amount := unit * float64(quantity)
	if amount == 0 {
		return 0, nil
	}
	if amount < MinChargeAmount {
		return 0, ErrPriceTooLow
	}
	return amount, nil
}

// MinorUnits converts a major-unit amount to the smallest currency unit
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
