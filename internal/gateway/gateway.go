package gateway

import "context"

// GatewayEventKind is the closed set of webhook event kinds the reconciler
// dispatches on. Anything the gateway sends outside this set maps to
// EventKindUnknown and is acknowledged without side effects.
type GatewayEventKind int

const (
	EventKindUnknown GatewayEventKind = iota
	EventKindSessionCompleted
	EventKindSessionExpired
)

func (k GatewayEventKind) String() string {
	switch k {
	case EventKindSessionCompleted:
		return "session_completed"
	case EventKindSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// Metadata keys attached to every checkout session. They carry enough to let
// the reconciler resolve the purchase without a prior lookup, since webhook
// delivery order relative to the synchronous response is not guaranteed.
const (
	MetaPaymentID   = "payment_id"
	MetaEventID     = "event_id"
	MetaTripID      = "trip_id"
	MetaTravelerID  = "traveler_id"
	MetaQuantity    = "quantity"
	MetaRequesterID = "requester_id"
)

// CheckoutSessionRequest describes one checkout session to create
type CheckoutSessionRequest struct {
	AmountMinorUnits int64
	Currency         string
	ProductName      string
	Quantity         int64
	SuccessURL       string
	CancelURL        string
	Metadata         map[string]string
}

// CheckoutSession is the handle returned by the gateway
type CheckoutSession struct {
	ID  string
	URL string
}

// GatewayEvent is a verified inbound webhook event
type GatewayEvent struct {
	Kind      GatewayEventKind
	SessionID string
	Metadata  map[string]string
	// RawType is the gateway's own type string, kept for logging
	RawType string
}

// PaymentGateway wraps the external payment provider. Injected everywhere so
// tests can substitute a fake.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error)
	// ParseWebhook verifies the signature and decodes the event. A signature
	// failure returns domain.ErrInvalidSignature with no state touched.
	ParseWebhook(payload []byte, signatureHeader string) (*GatewayEvent, error)
	// Refund returns the money for a session's payment. Best effort: callers
	// log failures but never roll back state because of one.
	Refund(ctx context.Context, sessionID, reason string) error
}
