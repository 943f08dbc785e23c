package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roamly/roamly-core/internal/dto"
	"github.com/roamly/roamly-core/internal/service"
	"github.com/roamly/roamly-core/pkg/response"
)

// TripHandler handles trip lifecycle HTTP endpoints
type TripHandler struct {
	tripService service.TripService
}

// NewTripHandler creates a new TripHandler
func NewTripHandler(tripService service.TripService) *TripHandler {
	return &TripHandler{tripService: tripService}
}

// Create handles POST /trips
func (h *TripHandler) Create(c *gin.Context) {
	var req dto.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error("VALIDATION_ERROR", err.Error()))
		return
	}

	fromDate, err := time.Parse("2006-01-02", req.FromDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error("VALIDATION_ERROR", "from_date must be YYYY-MM-DD"))
		return
	}
	toDate, err := time.Parse("2006-01-02", req.ToDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error("VALIDATION_ERROR", "to_date must be YYYY-MM-DD"))
		return
	}

	trip, err := h.tripService.CreateTrip(c.Request.Context(), principalFrom(c), &service.CreateTripRequest{
		FromDate:       fromDate,
		ToDate:         toDate,
		NumberOfPeople: req.NumberOfPeople,
		DailyItinerary: req.DailyItinerary,
		NeedsGuide:     req.NeedsGuide,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(trip))
}

// Get handles GET /trips/:id
func (h *TripHandler) Get(c *gin.Context) {
	trip, err := h.tripService.GetTrip(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(trip))
}

// AssignGuide handles POST /trips/:id/guide
func (h *TripHandler) AssignGuide(c *gin.Context) {
	var req dto.AssignGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error("VALIDATION_ERROR", err.Error()))
		return
	}

	trip, err := h.tripService.AssignGuide(c.Request.Context(), principalFrom(c), c.Param("id"), req.GuideID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(trip))
}

// Confirm handles POST /trips/:id/confirm
func (h *TripHandler) Confirm(c *gin.Context) {
	trip, err := h.tripService.ConfirmTrip(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(trip))
}

// Start handles POST /trips/:id/start
func (h *TripHandler) Start(c *gin.Context) {
	var req dto.StartTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error("VALIDATION_ERROR", err.Error()))
		return
	}

	result, err := h.tripService.StartTrip(c.Request.Context(), principalFrom(c), c.Param("id"), *req.Latitude, *req.Longitude)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// Verify handles POST /trips/:id/verify, called by the guide
func (h *TripHandler) Verify(c *gin.Context) {
	var req dto.VerifyStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error("VALIDATION_ERROR", err.Error()))
		return
	}

	v, err := h.tripService.VerifyStart(c.Request.Context(), principalFrom(c), c.Param("id"), req.Code, *req.Latitude, *req.Longitude)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{
		"trip_id":   v.TripID,
		"verified":  v.Verified,
		"same_area": v.SameArea(),
	}))
}

// Complete handles POST /trips/:id/complete
func (h *TripHandler) Complete(c *gin.Context) {
	trip, err := h.tripService.CompleteTrip(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(trip))
}

// Cancel handles POST /trips/:id/cancel
func (h *TripHandler) Cancel(c *gin.Context) {
	trip, err := h.tripService.CancelTrip(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(trip))
}
