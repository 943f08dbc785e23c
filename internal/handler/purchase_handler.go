package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/internal/dto"
	"github.com/roamly/roamly-core/internal/service"
	"github.com/roamly/roamly-core/pkg/middleware"
	"github.com/roamly/roamly-core/pkg/response"
)

// PurchaseHandler handles ticket purchase HTTP endpoints
type PurchaseHandler struct {
	purchaseService service.PurchaseService
}

// NewPurchaseHandler creates a new PurchaseHandler
func NewPurchaseHandler(purchaseService service.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchaseService: purchaseService}
}

// principalFrom pulls the authenticated principal set by the auth middleware
func principalFrom(c *gin.Context) domain.Principal {
	return domain.Principal{
		UserID: c.GetString(middleware.ContextKeyUserID),
		Role:   c.GetString(middleware.ContextKeyRole),
	}
}

// Purchase handles POST /events/:id/purchase
func (h *PurchaseHandler) Purchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error("VALIDATION_ERROR", err.Error()))
		return
	}

	result, err := h.purchaseService.PurchaseTickets(c.Request.Context(), principalFrom(c), c.Param("id"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// Cancel handles POST /events/:id/cancel
func (h *PurchaseHandler) Cancel(c *gin.Context) {
	var req dto.CancelPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error("VALIDATION_ERROR", err.Error()))
		return
	}

	if err := h.purchaseService.CancelPurchase(c.Request.Context(), principalFrom(c), req.PaymentID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"payment_id": req.PaymentID, "status": domain.PaymentStatusCancelled}))
}

// PayTrip handles POST /trips/:id/pay
func (h *PurchaseHandler) PayTrip(c *gin.Context) {
	var req dto.PayTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error("VALIDATION_ERROR", err.Error()))
		return
	}

	result, err := h.purchaseService.PayTripDeposit(c.Request.Context(), principalFrom(c), c.Param("id"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// GetTripPayment handles GET /trips/:id/payment, the deposit status poll
func (h *PurchaseHandler) GetTripPayment(c *gin.Context) {
	payment, err := h.purchaseService.GetTripPayment(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(payment))
}

// GetPayment handles GET /payments/:id, the polling companion to the webhook
func (h *PurchaseHandler) GetPayment(c *gin.Context) {
	payment, err := h.purchaseService.GetPayment(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(payment))
}
