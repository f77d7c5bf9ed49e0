package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/payreconapp/payrecon/internal/db"
	"github.com/payreconapp/payrecon/internal/models"
)

// Sweeper periodically replays cached gateway events for orders that have not
// reached a terminal reconciliation marker. It is the asynchronous caller of
// the transition engine; the synchronous verification handler is the other.
type Sweeper struct {
	orders     sweepOrderSource
	engine     eventApplier
	interval   time.Duration
	waitWindow time.Duration
	logger     *slog.Logger
}

type sweepOrderSource interface {
	ListAwaitingReconciliation(ctx context.Context, cutoff time.Time) ([]*db.Order, error)
}

type eventApplier interface {
	Apply(ctx context.Context, order *db.Order, kind models.EventKind, event models.PaymentEvent) error
}

func NewSweeper(orders sweepOrderSource, engine eventApplier, interval, waitWindow time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		orders:     orders,
		engine:     engine,
		interval:   interval,
		waitWindow: waitWindow,
		logger:     logger,
	}
}

// Run executes sweep passes on a fixed interval until the context is
// canceled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("reconciliation sweep started", "interval", s.interval, "wait_window", s.waitWindow)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciliation sweep stopped")
			return
		case <-ticker.C:
		}

		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("sweep pass failed", "error", err)
		}
	}
}

// RunOnce performs a single sweep pass. A failure on one order is logged and
// isolated; the remaining orders still process.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	span := sentry.StartSpan(
		ctx,
		"service.sweep.run_once",
		sentry.WithOpName("service.sweep"),
		sentry.WithDescription("Sweeper.RunOnce"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	// The age gate: orders whose latest event arrived inside the wait window
	// are skipped so the sweep does not race an in-flight synchronous
	// verification for the same order.
	cutoff := time.Now().Add(-s.waitWindow)

	orders, err := s.orders.ListAwaitingReconciliation(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list orders awaiting reconciliation: %w", err)
	}
	if len(orders) == 0 {
		return nil
	}
	s.logger.Info("sweep pass selected orders", "count", len(orders))

	meter := sentry.NewMeter(ctx).WithCtx(ctx)
	for _, order := range orders {
		if err := s.reconcileOrder(ctx, order); err != nil {
			s.logger.Error("failed to reconcile order", "error", err, "order_id", order.OrderID)
			meter.Count("sweep.order.failed", 1)
			continue
		}
		meter.Count("sweep.order.processed", 1)
	}

	span.Status = sentry.SpanStatusOK
	return nil
}

// reconcileOrder replays the order's cached events. A paid event supersedes
// authorization, so it is applied first; the authorized event then only runs
// when the marker is still below invoice-generated, which routes an
// already-completed authorization into the engine's repeat guard.
func (s *Sweeper) reconcileOrder(ctx context.Context, order *db.Order) error {
	if order.PaymentMethod != models.PaymentMethodRazorpay {
		return nil
	}
	if order.LifecycleState != models.StateProcessing && order.LifecycleState != models.StateNew {
		return nil
	}
	if order.GatewayEvents.Empty() {
		return nil
	}

	if paid := order.GatewayEvents.Paid; paid != nil {
		if err := s.engine.Apply(ctx, order, models.EventOrderPaid, *paid); err != nil {
			return err
		}
	}

	if authorized := order.GatewayEvents.Authorized; authorized != nil &&
		order.ReconciliationMarker < models.MarkerInvoiceGenerated {
		if err := s.engine.Apply(ctx, order, models.EventPaymentAuthorized, *authorized); err != nil {
			return err
		}
	}

	return nil
}
