package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/payreconapp/payrecon/internal/models"
)

// ErrStaleOrder is returned when a versioned save loses against a concurrent
// writer. The caller re-reads and retries, or leaves the order for the next
// sweep pass.
var ErrStaleOrder = errors.New("order was modified concurrently")

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `
	id, order_id, gateway_order_id, lifecycle_state, status_label,
	reconciliation_marker, gateway_events, last_event_received_at,
	grand_total, currency, payment_method, customer_email, customer_name,
	status_comments, customer_notified, version, created_at`

func (s *OrderStore) GetByOrderID(ctx context.Context, orderID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`
	return s.scanOrder(s.pool.QueryRow(ctx, query, orderID))
}

func (s *OrderStore) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE gateway_order_id = $1`
	return s.scanOrder(s.pool.QueryRow(ctx, query, gatewayOrderID))
}

// ListAwaitingReconciliation returns orders below the invoice-generated marker
// whose most recent cached gateway event is older than the cutoff. The age
// gate keeps the sweep from racing an in-flight synchronous verification.
func (s *OrderStore) ListAwaitingReconciliation(ctx context.Context, cutoff time.Time) ([]*Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE reconciliation_marker < $1
		  AND last_event_received_at IS NOT NULL
		  AND last_event_received_at < $2
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, int(models.MarkerInvoiceGenerated), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		order, err := s.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// Update performs the single atomic write of a transition. The write is
// conditional on the version the caller read; a lost race returns
// ErrStaleOrder instead of silently overwriting.
func (s *OrderStore) Update(ctx context.Context, order *Order) error {
	eventsJSON, err := json.Marshal(order.GatewayEvents)
	if err != nil {
		return err
	}
	commentsJSON, err := json.Marshal(order.StatusComments)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders
		SET lifecycle_state = $1, status_label = $2, reconciliation_marker = $3,
		    gateway_events = $4, status_comments = $5, customer_notified = $6,
		    version = version + 1
		WHERE id = $7 AND version = $8
	`
	cmdTag, err := s.pool.Exec(ctx, query,
		string(order.LifecycleState),
		order.StatusLabel,
		int(order.ReconciliationMarker),
		eventsJSON,
		commentsJSON,
		order.CustomerNotified,
		order.ID,
		order.Version,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s version %d", ErrStaleOrder, order.OrderID, order.Version)
	}
	order.Version++
	return nil
}

// CacheGatewayEvent records a webhook-delivered payment event onto the order
// keyed by event kind and stamps last_event_received_at. Only the event slot
// for the given kind is touched.
func (s *OrderStore) CacheGatewayEvent(ctx context.Context, gatewayOrderID string, kind EventKind, event PaymentEvent, receivedAt time.Time) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}

	query := `
		UPDATE orders
		SET gateway_events = jsonb_set(COALESCE(gateway_events, '{}'::jsonb), ARRAY[$2::text], $3::jsonb),
		    last_event_received_at = $4,
		    version = version + 1
		WHERE gateway_order_id = $1
	`
	cmdTag, err := s.pool.Exec(ctx, query, gatewayOrderID, string(kind), eventJSON, receivedAt)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type orderScanner interface {
	Scan(dest ...any) error
}

func (s *OrderStore) scanOrder(row orderScanner) (*Order, error) {
	var (
		order         Order
		state         string
		marker        int32
		eventsJSON    []byte
		lastEventAt   pgtype.Timestamptz
		customerEmail pgtype.Text
		customerName  pgtype.Text
		commentsJSON  []byte
		createdAt     pgtype.Timestamptz
	)

	err := row.Scan(
		&order.ID,
		&order.OrderID,
		&order.GatewayOrderID,
		&state,
		&order.StatusLabel,
		&marker,
		&eventsJSON,
		&lastEventAt,
		&order.GrandTotal,
		&order.Currency,
		&order.PaymentMethod,
		&customerEmail,
		&customerName,
		&commentsJSON,
		&order.CustomerNotified,
		&order.Version,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	order.LifecycleState = LifecycleState(state)
	order.ReconciliationMarker = ReconciliationMarker(marker)
	if lastEventAt.Valid {
		t := lastEventAt.Time
		order.LastEventReceivedAt = &t
	}
	if customerEmail.Valid {
		order.CustomerEmail = customerEmail.String
	}
	if customerName.Valid {
		order.CustomerName = customerName.String
	}
	order.CreatedAt = createdAt.Time

	if eventsJSON != nil {
		if err := json.Unmarshal(eventsJSON, &order.GatewayEvents); err != nil {
			return nil, fmt.Errorf("failed to decode gateway events for order %s: %w", order.OrderID, err)
		}
	}
	if commentsJSON != nil {
		if err := json.Unmarshal(commentsJSON, &order.StatusComments); err != nil {
			return nil, fmt.Errorf("failed to decode status comments for order %s: %w", order.OrderID, err)
		}
	}

	return &order, nil
}
