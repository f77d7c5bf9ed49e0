package models

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleState is the coarse order state maintained by the storefront.
type LifecycleState string

const (
	StateNew        LifecycleState = "new"
	StateProcessing LifecycleState = "processing"
	StateCanceled   LifecycleState = "canceled"
)

// Human-facing status labels. The paid label may be overridden per store
// through configuration.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
)

// ReconciliationMarker tracks how far an order has progressed through the
// payment transition pipeline. It never decreases, with the single exception
// of the cron-repeat branch, which is a diagnostic marker rather than a
// rollback.
type ReconciliationMarker int

const (
	MarkerDefault ReconciliationMarker = iota
	MarkerPaymentAuthorizedCompleted
	MarkerOrderPaidAfterManualCapture
	MarkerInvoiceGenerated
	MarkerInvoiceGenerationNotPossible
	MarkerPaymentAuthorizedCronRepeat
)

// Terminal reports whether no further reconciliation work remains.
func (m ReconciliationMarker) Terminal() bool {
	return m == MarkerInvoiceGenerated || m == MarkerInvoiceGenerationNotPossible
}

func (m ReconciliationMarker) String() string {
	switch m {
	case MarkerDefault:
		return "default"
	case MarkerPaymentAuthorizedCompleted:
		return "payment_authorized_completed"
	case MarkerOrderPaidAfterManualCapture:
		return "order_paid_after_manual_capture"
	case MarkerInvoiceGenerated:
		return "invoice_generated"
	case MarkerInvoiceGenerationNotPossible:
		return "invoice_generation_not_possible"
	case MarkerPaymentAuthorizedCronRepeat:
		return "payment_authorized_cron_repeat"
	default:
		return "unknown"
	}
}

// EventKind identifies a gateway payment event.
type EventKind string

const (
	EventPaymentAuthorized EventKind = "payment.authorized"
	EventOrderPaid         EventKind = "order.paid"
)

// PaymentEvent is the payload the gateway reports for one payment event.
type PaymentEvent struct {
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

// GatewayEvents holds the cached webhook payloads for an order, one slot per
// event kind. The typed representation avoids generic deserialization of
// stored blobs.
type GatewayEvents struct {
	Authorized *PaymentEvent `json:"payment.authorized,omitempty"`
	Paid       *PaymentEvent `json:"order.paid,omitempty"`
}

func (e GatewayEvents) Empty() bool {
	return e.Authorized == nil && e.Paid == nil
}

func (e GatewayEvents) ByKind(kind EventKind) *PaymentEvent {
	switch kind {
	case EventPaymentAuthorized:
		return e.Authorized
	case EventOrderPaid:
		return e.Paid
	default:
		return nil
	}
}

// PaymentMethodRazorpay is the payment method code orders carry when placed
// through the gateway.
const PaymentMethodRazorpay = "razorpay"

type Order struct {
	ID                   uuid.UUID            `json:"id"`
	OrderID              string               `json:"order_id"`
	GatewayOrderID       string               `json:"gateway_order_id"`
	LifecycleState       LifecycleState       `json:"lifecycle_state"`
	StatusLabel          string               `json:"status_label"`
	ReconciliationMarker ReconciliationMarker `json:"reconciliation_marker"`
	GatewayEvents        GatewayEvents        `json:"gateway_events"`
	LastEventReceivedAt  *time.Time           `json:"last_event_received_at"`
	GrandTotal           int64                `json:"grand_total"`
	Currency             string               `json:"currency"`
	PaymentMethod        string               `json:"payment_method"`
	CustomerEmail        string               `json:"customer_email"`
	CustomerName         string               `json:"customer_name"`
	StatusComments       []string             `json:"status_comments"`
	CustomerNotified     bool                 `json:"customer_notified"`
	Version              int64                `json:"version"`
	CreatedAt            time.Time            `json:"created_at"`
}

// CanInvoice reports whether an invoice may still be generated for the order.
func (o *Order) CanInvoice() bool {
	return o.LifecycleState != StateCanceled &&
		o.GrandTotal > 0 &&
		o.ReconciliationMarker < MarkerInvoiceGenerated
}

// AddStatusComment appends a human-readable entry to the order's status
// history.
func (o *Order) AddStatusComment(comment string) {
	if comment == "" {
		return
	}
	o.StatusComments = append(o.StatusComments, comment)
}
