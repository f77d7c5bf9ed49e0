package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/payreconapp/payrecon/internal/cache"
	"github.com/payreconapp/payrecon/internal/config"
	"github.com/payreconapp/payrecon/internal/db"
	"github.com/payreconapp/payrecon/internal/logging"
	"github.com/payreconapp/payrecon/internal/services"
)

const maxWebhookBodyBytes = 1 << 20 // 1 MB

type paymentVerifier interface {
	VerifyPayment(ctx context.Context, input services.VerifyPaymentInput) (*services.VerifyPaymentResult, error)
}

type orderStore interface {
	GetByOrderID(ctx context.Context, orderID string) (*db.Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*db.Order, error)
	CacheGatewayEvent(ctx context.Context, gatewayOrderID string, kind db.EventKind, event db.PaymentEvent, receivedAt time.Time) error
}

type invoiceReader interface {
	GetByOrder(ctx context.Context, orderUUID uuid.UUID) (*db.Invoice, error)
}

type ledgerReader interface {
	ListByOrder(ctx context.Context, orderUUID uuid.UUID) ([]*db.Transaction, error)
}

type webhookVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

// Handlers provides the HTTP surface of the reconciliation service.
type Handlers struct {
	config        *config.Config
	verifier      paymentVerifier
	orderStore    orderStore
	invoiceStore  invoiceReader
	ledger        ledgerReader
	gateway       webhookVerifier
	cacheProvider cache.Provider
	logger        *slog.Logger
}

type Dependencies struct {
	Config        *config.Config
	Verifier      paymentVerifier
	OrderStore    orderStore
	InvoiceStore  invoiceReader
	Ledger        ledgerReader
	Gateway       webhookVerifier
	CacheProvider cache.Provider
	Logger        *slog.Logger
}

func New(deps Dependencies) (*Handlers, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("payment verifier is required")
	}
	if deps.OrderStore == nil {
		return nil, fmt.Errorf("order store is required")
	}
	if deps.InvoiceStore == nil {
		return nil, fmt.Errorf("invoice store is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("transaction store is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway client is required")
	}
	if deps.CacheProvider == nil {
		return nil, fmt.Errorf("cache provider is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Handlers{
		config:        deps.Config,
		verifier:      deps.Verifier,
		orderStore:    deps.OrderStore,
		invoiceStore:  deps.InvoiceStore,
		ledger:        deps.Ledger,
		gateway:       deps.Gateway,
		cacheProvider: deps.CacheProvider,
		logger:        deps.Logger,
	}, nil
}

func (h *Handlers) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, h.logger)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}
