package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"

	"github.com/payreconapp/payrecon/internal/config"
	"github.com/payreconapp/payrecon/internal/db"
	"github.com/payreconapp/payrecon/internal/gateway"
	"github.com/payreconapp/payrecon/internal/logging"
	"github.com/payreconapp/payrecon/internal/models"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrSignatureMismatch  = errors.New("payment signature verification failed")
	ErrReceiptMismatch    = errors.New("gateway order receipt does not match order")
	ErrGatewayUnavailable = errors.New("payment gateway request failed")
)

// ValidationError reports a missing required input field. It is caller
// visible and never changes order state.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("required parameter %q is missing", e.Field)
}

type VerifyPaymentInput struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type VerifyPaymentResult struct {
	OrderID string `json:"order_id"`
}

var inputValidator = validator.New()

// VerificationService handles client-asserted payment completions: it proves
// the assertion against the gateway before letting any state change happen.
type VerificationService struct {
	orders  verificationOrderStore
	engine  *TransitionEngine
	gateway gateway.Client
	cfg     *config.Config
	logger  *slog.Logger
}

type verificationOrderStore interface {
	GetByOrderID(ctx context.Context, orderID string) (*db.Order, error)
	Update(ctx context.Context, order *db.Order) error
}

func NewVerificationService(orders verificationOrderStore, engine *TransitionEngine, gatewayClient gateway.Client, cfg *config.Config, logger *slog.Logger) *VerificationService {
	return &VerificationService{
		orders:  orders,
		engine:  engine,
		gateway: gatewayClient,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *VerificationService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// VerifyPayment validates the reported payment against the gateway and, when
// the gateway confirms capture, runs the shared invoice and notification
// routine. Signature and receipt mismatches are terminal; no state changes.
func (s *VerificationService) VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*VerifyPaymentResult, error) {
	span := sentry.StartSpan(
		ctx,
		"service.verification.verify_payment",
		sentry.WithOpName("service.verification"),
		sentry.WithDescription("VerificationService.VerifyPayment"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)

	if err := validateVerifyInput(input); err != nil {
		return nil, err
	}
	logger = logger.With("order_id", input.OrderID, "payment_id", input.PaymentID)

	order, err := s.orders.GetByOrderID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, input.OrderID)
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if !s.gateway.VerifyPaymentSignature(order.GatewayOrderID, input.PaymentID, input.Signature) {
		logger.Error("payment signature mismatch", "gateway_order_id", order.GatewayOrderID)
		return nil, ErrSignatureMismatch
	}

	snapshot, err := s.gateway.FetchOrder(ctx, order.GatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, err)
	}

	if snapshot.Receipt != order.OrderID {
		logger.Error("gateway receipt mismatch", "receipt", snapshot.Receipt)
		return nil, fmt.Errorf("%w: gateway reports receipt %q", ErrReceiptMismatch, snapshot.Receipt)
	}

	unlock := s.engine.locks.Lock(order.OrderID)
	defer unlock()

	if order.StatusLabel == models.StatusPending {
		order.LifecycleState = models.StateProcessing
		order.StatusLabel = models.StatusProcessing
	}

	wording := "Captured"
	if s.cfg.CaptureMode == config.CaptureModeAuthorize {
		wording = "Authorized"
	}
	order.AddStatusComment(fmt.Sprintf("%s amount of %s online. Transaction ID: %q.",
		wording, formatAmount(order.Currency, snapshot.Amount), input.PaymentID))

	if order.CanInvoice() && s.cfg.AutoInvoiceEnabled && snapshot.Status == gateway.StatusPaid {
		invoice, invoiceErr := s.engine.generateInvoice(ctx, order, input.PaymentID, snapshot.Amount)
		if invoiceErr != nil {
			// partial failure: the verified transition is kept, the sweep
			// retries invoice creation on its next pass
			logger.Error("invoice generation failed", "error", invoiceErr)
		} else {
			s.engine.notifyCustomer(ctx, order, invoice)
		}
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	logger.Info("payment verified", "marker", order.ReconciliationMarker.String())
	span.Status = sentry.SpanStatusOK
	return &VerifyPaymentResult{OrderID: order.OrderID}, nil
}

func validateVerifyInput(input VerifyPaymentInput) error {
	err := inputValidator.Struct(input)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		return &ValidationError{Field: validationErrs[0].Field()}
	}
	return err
}
