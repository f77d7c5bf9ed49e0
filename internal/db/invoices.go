package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvoiceExists is returned when an invoice already exists for the order.
// The unique constraint on order_uuid is what enforces the at-most-one
// invariant; this error just reports it.
var ErrInvoiceExists = errors.New("invoice already exists for order")

type InvoiceStore struct {
	pool *pgxpool.Pool
}

func NewInvoiceStore(pool *pgxpool.Pool) *InvoiceStore {
	return &InvoiceStore{pool: pool}
}

// Create inserts the invoice and fills in the store-assigned fields. A
// conflicting insert leaves the existing invoice untouched and returns
// ErrInvoiceExists.
func (s *InvoiceStore) Create(ctx context.Context, invoice *Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}

	query := `
		INSERT INTO invoices (id, order_uuid, transaction_id, capture_case, amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_uuid) DO NOTHING
		RETURNING invoice_number, created_at
	`
	err := s.pool.QueryRow(ctx, query,
		invoice.ID,
		invoice.OrderUUID,
		invoice.TransactionID,
		invoice.CaptureCase,
		invoice.Amount,
		invoice.Currency,
	).Scan(&invoice.InvoiceNumber, &invoice.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: order %s", ErrInvoiceExists, invoice.OrderUUID)
	}
	return err
}

func (s *InvoiceStore) GetByOrder(ctx context.Context, orderUUID uuid.UUID) (*Invoice, error) {
	query := `
		SELECT id, order_uuid, invoice_number, transaction_id, capture_case, amount, currency, created_at
		FROM invoices
		WHERE order_uuid = $1
	`
	var invoice Invoice
	err := s.pool.QueryRow(ctx, query, orderUUID).Scan(
		&invoice.ID,
		&invoice.OrderUUID,
		&invoice.InvoiceNumber,
		&invoice.TransactionID,
		&invoice.CaptureCase,
		&invoice.Amount,
		&invoice.Currency,
		&invoice.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}
