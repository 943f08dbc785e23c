package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"

	"github.com/roamly/roamly-core/internal/domain"
	"github.com/roamly/roamly-core/pkg/logger"
)

// StripeGateway implements PaymentGateway using Stripe Checkout
type StripeGateway struct {
	config *StripeGatewayConfig
}

// StripeGatewayConfig holds configuration for the Stripe gateway
type StripeGatewayConfig struct {
	SecretKey     string
	WebhookSecret string
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	if config.WebhookSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret is required")
	}

	// Set Stripe API key globally
	stripe.Key = config.SecretKey

	return &StripeGateway{config: config}, nil
}

// CreateCheckoutSession creates a hosted checkout session for the purchase
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error) {
	if req == nil {
		return nil, fmt.Errorf("checkout session request is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.AmountMinorUnits),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.ProductName),
					},
				},
				Quantity: stripe.Int64(req.Quantity),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Metadata:   req.Metadata,
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ParseWebhook verifies the signature header and decodes the event into the
// closed event kind set
func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*GatewayEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, g.config.WebhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	out := &GatewayEvent{RawType: string(event.Type)}

	switch event.Type {
	case "checkout.session.completed":
		out.Kind = EventKindSessionCompleted
	case "checkout.session.expired":
		out.Kind = EventKindSessionExpired
	default:
		out.Kind = EventKindUnknown
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session payload: %w", err)
	}
	out.SessionID = cs.ID
	out.Metadata = cs.Metadata
	return out, nil
}

// Refund returns the money for the session's payment intent
func (g *StripeGateway) Refund(ctx context.Context, sessionID, reason string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	getParams := &stripe.CheckoutSessionParams{}
	getParams.Context = ctx
	s, err := session.Get(sessionID, getParams)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if s.PaymentIntent == nil || s.PaymentIntent.ID == "" {
		return fmt.Errorf("session %s has no payment intent to refund", sessionID)
	}

	refundParams := &stripe.RefundParams{
		PaymentIntent: stripe.String(s.PaymentIntent.ID),
		Metadata:      map[string]string{"reason": reason},
	}
	refundParams.Context = ctx

	if _, err := refund.New(refundParams); err != nil {
		return fmt.Errorf("failed to create refund: %w", err)
	}

	logger.Get().Info("refund created",
		zap.String("session_id", sessionID),
		zap.String("payment_intent_id", s.PaymentIntent.ID),
	)
	return nil
}
