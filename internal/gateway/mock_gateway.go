package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
)

// alphanumericChars for generating Stripe-compatible session IDs
const alphanumericChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomAlphanumeric(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumericChars[rand.Intn(len(alphanumericChars))]
	}
	return string(b)
}

// MockGateway implements PaymentGateway without contacting Stripe, for local
// development and load testing
type MockGateway struct {
	mu       sync.RWMutex
	sessions map[string]*CheckoutSessionRequest
	refunds  map[string]string

	// FailCheckout and FailRefund force errors when set
	FailCheckout bool
	FailRefund   bool
}

// NewMockGateway creates a new mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{
		sessions: make(map[string]*CheckoutSessionRequest),
		refunds:  make(map[string]string),
	}
}

// CreateCheckoutSession fabricates a session handle and remembers the request
func (g *MockGateway) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error) {
	if req == nil {
		return nil, fmt.Errorf("checkout session request is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailCheckout {
		return nil, fmt.Errorf("mock gateway checkout failure")
	}

	id := "cs_test_" + randomAlphanumeric(24)
	g.sessions[id] = req
	return &CheckoutSession{
		ID:  id,
		URL: "https://checkout.mock.local/pay/" + id,
	}, nil
}

// ParseWebhook is not signature-checked in the mock; tests exercise signature
// verification against the real implementation
func (g *MockGateway) ParseWebhook(payload []byte, signatureHeader string) (*GatewayEvent, error) {
	return &GatewayEvent{Kind: EventKindUnknown, RawType: "mock"}, nil
}

// Refund records the refund request
func (g *MockGateway) Refund(ctx context.Context, sessionID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailRefund {
		return fmt.Errorf("mock gateway refund failure")
	}
	if _, ok := g.sessions[sessionID]; !ok {
		return fmt.Errorf("unknown session: %s", sessionID)
	}
	g.refunds[sessionID] = reason
	return nil
}

// Refunded reports whether a refund was issued for the session
func (g *MockGateway) Refunded(sessionID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.refunds[sessionID]
	return ok
}

// SessionRequest returns the recorded request for a created session
func (g *MockGateway) SessionRequest(sessionID string) (*CheckoutSessionRequest, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	req, ok := g.sessions[sessionID]
	return req, ok
}
