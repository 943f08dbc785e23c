package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/internal/gateway"
	"github.com/roamly/roamly-core/internal/service"
	"github.com/roamly/roamly-core/pkg/logger"
	"github.com/roamly/roamly-core/pkg/response"
)

// WebhookHandler receives asynchronous payment gateway notifications
type WebhookHandler struct {
	gateway    gateway.PaymentGateway
	reconciler service.ReconcilerService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(gw gateway.PaymentGateway, reconciler service.ReconcilerService) *WebhookHandler {
	return &WebhookHandler{gateway: gw, reconciler: reconciler}
}

// HandleGatewayWebhook handles POST /webhooks/payment.
//
// Status codes matter to the gateway: 400 tells it the request was malformed,
// 200 acknowledges (including events we ignore), and 500 asks for redelivery
// after a reconciliation failure.
func (h *WebhookHandler) HandleGatewayWebhook(c *gin.Context) {
	log := logger.Get()

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error("INVALID_BODY", "failed to read request body"))
		return
	}

	event, err := h.gateway.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidSignature) {
			log.Warn("webhook signature verification failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, response.Error("INVALID_SIGNATURE", "webhook signature verification failed"))
			return
		}
		log.Error("failed to parse webhook", zap.Error(err))
		c.JSON(http.StatusBadRequest, response.Error("INVALID_EVENT", "failed to parse webhook event"))
		return
	}

	if err := h.reconciler.HandleEvent(c.Request.Context(), event); err != nil {
		log.Error("webhook reconciliation failed",
			zap.String("kind", event.Kind.String()),
			zap.String("session_id", event.SessionID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, response.Error("RECONCILIATION_FAILED", "event not applied, expecting redelivery"))
		return
	}

	c.JSON(http.StatusOK, response.Success(gin.H{"received": true}))
}
