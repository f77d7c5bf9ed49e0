package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5"
)

type reconciliationInvoice struct {
	InvoiceNumber int64  `json:"invoice_number"`
	TransactionID string `json:"transaction_id"`
	CaptureCase   string `json:"capture_case"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

type reconciliationTransaction struct {
	EventKind string    `json:"event_kind"`
	PaymentID string    `json:"payment_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type reconciliationStatusResponse struct {
	OrderID              string                      `json:"order_id"`
	LifecycleState       string                      `json:"lifecycle_state"`
	StatusLabel          string                      `json:"status_label"`
	ReconciliationStatus string                      `json:"reconciliation_status"`
	CustomerNotified     bool                        `json:"customer_notified"`
	Invoice              *reconciliationInvoice      `json:"invoice,omitempty"`
	Transactions         []reconciliationTransaction `json:"transactions"`
}

// ReconciliationStatus reports how far an order has progressed through
// payment reconciliation, including its invoice and ledger entries.
func (h *Handlers) ReconciliationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	orderID := mux.Vars(r)["order_id"]
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "order id is required")
		return
	}

	order, err := h.orderStore.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order_not_found", "order not found")
			return
		}
		logger.Error("failed to load order", "error", err, "order_id", orderID)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load order")
		return
	}

	response := reconciliationStatusResponse{
		OrderID:              order.OrderID,
		LifecycleState:       string(order.LifecycleState),
		StatusLabel:          order.StatusLabel,
		ReconciliationStatus: order.ReconciliationMarker.String(),
		CustomerNotified:     order.CustomerNotified,
		Transactions:         []reconciliationTransaction{},
	}

	invoice, err := h.invoiceStore.GetByOrder(ctx, order.ID)
	switch {
	case err == nil:
		response.Invoice = &reconciliationInvoice{
			InvoiceNumber: invoice.InvoiceNumber,
			TransactionID: invoice.TransactionID,
			CaptureCase:   invoice.CaptureCase,
			Amount:        invoice.Amount,
			Currency:      invoice.Currency,
		}
	case errors.Is(err, pgx.ErrNoRows):
		// no invoice yet, or none will be generated
	default:
		logger.Error("failed to load invoice", "error", err, "order_id", orderID)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load invoice")
		return
	}

	transactions, err := h.ledger.ListByOrder(ctx, order.ID)
	if err != nil {
		logger.Error("failed to load ledger transactions", "error", err, "order_id", orderID)
		writeError(w, http.StatusInternalServerError, "internal", "failed to load transactions")
		return
	}
	for _, tx := range transactions {
		response.Transactions = append(response.Transactions, reconciliationTransaction{
			EventKind: string(tx.EventKind),
			PaymentID: tx.PaymentID,
			Amount:    tx.Amount,
			CreatedAt: tx.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, response)
}
