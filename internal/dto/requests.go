package dto

import "encoding/json"

// PurchaseRequest is the body of POST /events/:id/purchase
type PurchaseRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// CancelPurchaseRequest is the body of POST /events/:id/cancel
type CancelPurchaseRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

// CreateTripRequest is the body of POST /trips
type CreateTripRequest struct {
	FromDate       string          `json:"from_date" binding:"required"`
	ToDate         string          `json:"to_date" binding:"required"`
	NumberOfPeople int             `json:"number_of_people" binding:"required,gt=0"`
	DailyItinerary json.RawMessage `json:"daily_itinerary"`
	NeedsGuide     bool            `json:"needs_guide"`
}

// AssignGuideRequest is the body of POST /trips/:id/guide
type AssignGuideRequest struct {
	GuideID string `json:"guide_id" binding:"required"`
}

// PayTripRequest is the body of POST /trips/:id/pay. Amount is the quoted
// deposit in major currency units.
type PayTripRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// StartTripRequest is the body of POST /trips/:id/start. The coordinates are
// pointers so a 0 on the equator or prime meridian still satisfies required.
type StartTripRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
}

// VerifyStartRequest is the body of POST /trips/:id/verify
type VerifyStartRequest struct {
	Code      string   `json:"code" binding:"required"`
	Latitude  *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
}
