package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionStore is the append-only payment ledger. Rows are closed on
// insert and never updated; uniqueness on (order_uuid, event_kind) makes a
// second application of the same event a no-op.
type TransactionStore struct {
	pool *pgxpool.Pool
}

func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

func (s *TransactionStore) Exists(ctx context.Context, orderUUID uuid.UUID, kind EventKind) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM transactions WHERE order_uuid = $1 AND event_kind = $2)`
	var exists bool
	if err := s.pool.QueryRow(ctx, query, orderUUID, string(kind)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *TransactionStore) Create(ctx context.Context, tx *Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.Closed = true

	query := `
		INSERT INTO transactions (id, order_uuid, event_kind, payment_id, amount, closed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_uuid, event_kind) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query,
		tx.ID,
		tx.OrderUUID,
		string(tx.EventKind),
		tx.PaymentID,
		tx.Amount,
		tx.Closed,
	)
	return err
}

func (s *TransactionStore) ListByOrder(ctx context.Context, orderUUID uuid.UUID) ([]*Transaction, error) {
	query := `
		SELECT id, order_uuid, event_kind, payment_id, amount, closed, created_at
		FROM transactions
		WHERE order_uuid = $1
		ORDER BY created_at
	`
	rows, err := s.pool.Query(ctx, query, orderUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*Transaction
	for rows.Next() {
		var tx Transaction
		var kind string
		if err := rows.Scan(&tx.ID, &tx.OrderUUID, &kind, &tx.PaymentID, &tx.Amount, &tx.Closed, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.EventKind = EventKind(kind)
		transactions = append(transactions, &tx)
	}
	return transactions, rows.Err()
}
