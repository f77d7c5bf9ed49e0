package models

import (
	"time"

	"github.com/google/uuid"
)

// CaptureCaseOnline marks invoices whose payment was captured at the gateway
// rather than on delivery.
const CaptureCaseOnline = "online"

// Invoice is created at most once per order. TransactionID carries the gateway
// payment id the capture belongs to.
type Invoice struct {
	ID            uuid.UUID `json:"id"`
	OrderUUID     uuid.UUID `json:"order_uuid"`
	InvoiceNumber int64     `json:"invoice_number"`
	TransactionID string    `json:"transaction_id"`
	CaptureCase   string    `json:"capture_case"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
}

// Transaction is an append-only ledger entry recording one applied payment
// event. A closed row is never edited; its existence for a given
// (order, event kind) pair is the durable idempotency witness.
type Transaction struct {
	ID        uuid.UUID `json:"id"`
	OrderUUID uuid.UUID `json:"order_uuid"`
	EventKind EventKind `json:"event_kind"`
	PaymentID string    `json:"payment_id"`
	Amount    int64     `json:"amount"`
	Closed    bool      `json:"closed"`
	CreatedAt time.Time `json:"created_at"`
}
