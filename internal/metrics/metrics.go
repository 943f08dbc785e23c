// Package metrics holds the core's business metric instruments.
package metrics

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/roamly/roamly-core/pkg/telemetry"
)

// Metrics bundles the instruments recorded by the services
type Metrics struct {
	PurchasesStarted  *telemetry.Counter
	PaymentsConfirmed *telemetry.Counter
	PaymentsCancelled *telemetry.Counter
	TicketsSold       *telemetry.Counter
	TicketsRestored   *telemetry.Counter
	WebhookEvents     *telemetry.Counter
	TripsStarted      *telemetry.Counter
	RefundFailures    *telemetry.Counter
	PurchaseAmount    *telemetry.Histogram
}

// New creates all instruments. Safe before telemetry.Init; instruments created
// against the global no-op provider simply record nothing.
func New() (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.PurchasesStarted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "roamly_purchases_started_total",
		Description: "Ticket purchase attempts",
	}); err != nil {
		return nil, err
	}
	if m.PaymentsConfirmed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "roamly_payments_confirmed_total",
		Description: "Payments transitioned to paid",
	}); err != nil {
		return nil, err
	}
	if m.PaymentsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "roamly_payments_cancelled_total",
		Description: "Payments transitioned to cancelled",
	}); err != nil {
		return nil, err
	}
	if m.TicketsSold, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "roamly_tickets_sold_total",
		Description: "Event tickets issued",
	}); err != nil {
		return nil, err
	}
	if m.TicketsRestored, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "roamly_tickets_restored_total",
		Description: "Event tickets restored by cancellations",
	}); err != nil {
		return nil, err
	}
	if m.WebhookEvents, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "roamly_webhook_events_total",
		Description: "Gateway webhook events by kind",
	}); err != nil {
		return nil, err
	}
	if m.TripsStarted, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "roamly_trips_started_total",
		Description: "Trips moved to in progress",
	}); err != nil {
		return nil, err
	}
	if m.RefundFailures, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "roamly_refund_failures_total",
		Description: "Best effort refunds that did not go through",
	}); err != nil {
		return nil, err
	}
	if m.PurchaseAmount, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "roamly_purchase_amount",
		Description: "Purchase amounts in major currency units",
		Unit:        "1",
	}); err != nil {
		return nil, err
	}

	return m, nil
}

// Kind is a helper for the webhook event kind attribute
func Kind(kind string) attribute.KeyValue {
	return attribute.String("kind", kind)
}
