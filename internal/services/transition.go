package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/payreconapp/payrecon/internal/config"
	"github.com/payreconapp/payrecon/internal/db"
	"github.com/payreconapp/payrecon/internal/logging"
	"github.com/payreconapp/payrecon/internal/models"
)

// TransitionEngine applies one gateway payment event to one order, effectively
// exactly once. It is the single synchronization point shared by the
// synchronous verification path and the reconciliation sweep: a per-order lock
// serializes in-process callers, the closed ledger row is the durable
// idempotency witness, and the final versioned save rejects lost updates from
// out-of-process racers.
type TransitionEngine struct {
	orders       orderWriter
	transactions transactionLedger
	invoices     invoiceCreator
	emailSender  PaymentEmailSender
	cfg          *config.Config
	locks        *orderLocks
	logger       *slog.Logger
}

type orderWriter interface {
	Update(ctx context.Context, order *db.Order) error
}

type transactionLedger interface {
	Exists(ctx context.Context, orderUUID uuid.UUID, kind models.EventKind) (bool, error)
	Create(ctx context.Context, tx *db.Transaction) error
}

type invoiceCreator interface {
	Create(ctx context.Context, invoice *db.Invoice) error
}

func NewTransitionEngine(orders orderWriter, transactions transactionLedger, invoices invoiceCreator, emailSender PaymentEmailSender, cfg *config.Config, logger *slog.Logger) *TransitionEngine {
	if emailSender == nil {
		emailSender = noopPaymentEmailSender{}
	}

	return &TransitionEngine{
		orders:       orders,
		transactions: transactions,
		invoices:     invoices,
		emailSender:  emailSender,
		cfg:          cfg,
		locks:        newOrderLocks(),
		logger:       logger,
	}
}

func (e *TransitionEngine) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, e.logger)
}

// Apply transitions the order for one payment event and persists the result
// with a single save. Re-applying an event that already has a ledger row only
// repeats the idempotent-safe parts; an authorization that was already
// completed records the diagnostic cron-repeat marker instead.
func (e *TransitionEngine) Apply(ctx context.Context, order *db.Order, kind models.EventKind, event models.PaymentEvent) error {
	span := sentry.StartSpan(
		ctx,
		"service.transition.apply",
		sentry.WithOpName("service.transition"),
		sentry.WithDescription("TransitionEngine.Apply"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := e.loggerFromContext(ctx).With("order_id", order.OrderID, "event", string(kind))
	meter := sentry.NewMeter(ctx).WithCtx(ctx)
	meter.SetAttributes(attribute.String("event", string(kind)))

	unlock := e.locks.Lock(order.OrderID)
	defer unlock()

	if kind == models.EventPaymentAuthorized &&
		order.ReconciliationMarker == models.MarkerPaymentAuthorizedCompleted &&
		order.LifecycleState == models.StateProcessing {
		logger.Info("authorization already applied, recording cron repeat")
		meter.Count("transition.authorized.repeat", 1)
		order.ReconciliationMarker = models.MarkerPaymentAuthorizedCronRepeat
		return e.orders.Update(ctx, order)
	}

	applied, err := e.transactions.Exists(ctx, order.ID, kind)
	if err != nil {
		return fmt.Errorf("failed to check transaction ledger: %w", err)
	}
	if !applied {
		tx := &db.Transaction{
			OrderUUID: order.ID,
			EventKind: kind,
			PaymentID: event.PaymentID,
			Amount:    event.Amount,
		}
		if err := e.transactions.Create(ctx, tx); err != nil {
			return fmt.Errorf("failed to record ledger transaction: %w", err)
		}
		meter.Count("transition.ledger.recorded", 1)
	}

	order.LifecycleState = models.StateProcessing
	order.StatusLabel = e.cfg.PaidStatusLabel()

	amount := formatAmount(order.Currency, event.Amount)
	switch kind {
	case models.EventPaymentAuthorized:
		order.AddStatusComment(fmt.Sprintf("Authorized amount of %s.", amount))
	case models.EventOrderPaid:
		order.AddStatusComment(fmt.Sprintf("Captured amount of %s online.", amount))
	}
	order.ReconciliationMarker = models.MarkerPaymentAuthorizedCompleted

	var invoice *db.Invoice
	if kind == models.EventOrderPaid {
		invoice, err = e.generateInvoice(ctx, order, event.PaymentID, event.Amount)
		if err != nil {
			// The transition stands; the marker stays below invoice-generated
			// so the next sweep pass retries invoice creation.
			logger.Error("invoice generation failed", "error", err)
			meter.Count("transition.invoice.failed", 1)
		}
	}

	e.notifyCustomer(ctx, order, invoice)

	if err := e.orders.Update(ctx, order); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	logger.Info("payment event applied", "marker", order.ReconciliationMarker.String())
	meter.Count("transition.applied", 1)
	span.Status = sentry.SpanStatusOK
	return nil
}

// generateInvoice creates the order's invoice and advances the marker to its
// terminal value. Both the verification path and the sweep path reach invoice
// generation through here so the two callers cannot diverge.
func (e *TransitionEngine) generateInvoice(ctx context.Context, order *db.Order, paymentID string, amount int64) (*db.Invoice, error) {
	logger := e.loggerFromContext(ctx)

	if !order.CanInvoice() || !e.cfg.AutoInvoiceEnabled {
		order.ReconciliationMarker = models.MarkerInvoiceGenerationNotPossible
		logger.Info("invoice generation not possible", "order_id", order.OrderID)
		return nil, nil
	}

	invoice := &db.Invoice{
		OrderUUID:     order.ID,
		TransactionID: paymentID,
		CaptureCase:   models.CaptureCaseOnline,
		Amount:        amount,
		Currency:      order.Currency,
	}
	if err := e.invoices.Create(ctx, invoice); err != nil {
		if errors.Is(err, db.ErrInvoiceExists) {
			logger.Info("invoice already exists", "order_id", order.OrderID)
			order.ReconciliationMarker = models.MarkerInvoiceGenerated
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	order.AddStatusComment(fmt.Sprintf("Notified customer about invoice #%d.", invoice.InvoiceNumber))
	order.CustomerNotified = true
	order.ReconciliationMarker = models.MarkerInvoiceGenerated
	logger.Info("invoice generated", "order_id", order.OrderID, "invoice_number", invoice.InvoiceNumber)
	return invoice, nil
}

// notifyCustomer sends the payment confirmation. A delivery failure is logged
// and swallowed; it must never roll back a committed transition.
func (e *TransitionEngine) notifyCustomer(ctx context.Context, order *db.Order, invoice *db.Invoice) {
	if err := e.emailSender.SendPaymentConfirmation(ctx, order, invoice); err != nil {
		e.loggerFromContext(ctx).Error("failed to send payment confirmation", "error", err, "order_id", order.OrderID)
	}
}

func formatAmount(currency string, amount int64) string {
	if currency == "" {
		currency = "INR"
	}
	return fmt.Sprintf("%s %.2f", currency, float64(amount)/100)
}

func formatInvoiceNumber(number int64) string {
	return fmt.Sprintf("%d", number)
}
