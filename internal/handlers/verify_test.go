package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/payreconapp/payrecon/internal/cache"
	"github.com/payreconapp/payrecon/internal/config"
	"github.com/payreconapp/payrecon/internal/db"
	"github.com/payreconapp/payrecon/internal/services"
)

var errTest = errors.New("test failure")

type fakeVerifier struct {
	result *services.VerifyPaymentResult
	err    error
	inputs []services.VerifyPaymentInput
}

func (f *fakeVerifier) VerifyPayment(ctx context.Context, input services.VerifyPaymentInput) (*services.VerifyPaymentResult, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type cachedEvent struct {
	gatewayOrderID string
	kind           db.EventKind
	event          db.PaymentEvent
}

type fakeOrderStore struct {
	orders   map[string]*db.Order
	getErr   error
	events   []cachedEvent
	cacheErr error
}

func (f *fakeOrderStore) GetByOrderID(ctx context.Context, orderID string) (*db.Order, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, order := range f.orders {
		if order.OrderID == orderID {
			return order, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeOrderStore) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*db.Order, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	order, ok := f.orders[gatewayOrderID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return order, nil
}

func (f *fakeOrderStore) CacheGatewayEvent(ctx context.Context, gatewayOrderID string, kind db.EventKind, event db.PaymentEvent, receivedAt time.Time) error {
	if f.cacheErr != nil {
		return f.cacheErr
	}
	f.events = append(f.events, cachedEvent{gatewayOrderID: gatewayOrderID, kind: kind, event: event})
	return nil
}

type fakeInvoiceReader struct {
	invoices map[uuid.UUID]*db.Invoice
	err      error
}

func (f *fakeInvoiceReader) GetByOrder(ctx context.Context, orderUUID uuid.UUID) (*db.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	invoice, ok := f.invoices[orderUUID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return invoice, nil
}

type fakeLedgerReader struct {
	transactions []*db.Transaction
	err          error
}

func (f *fakeLedgerReader) ListByOrder(ctx context.Context, orderUUID uuid.UUID) ([]*db.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	var matched []*db.Transaction
	for _, tx := range f.transactions {
		if tx.OrderUUID == orderUUID {
			matched = append(matched, tx)
		}
	}
	return matched, nil
}

type fakeWebhookVerifier struct {
	valid bool
}

func (f *fakeWebhookVerifier) VerifyWebhookSignature(body []byte, signature string) bool {
	return f.valid
}

type fakeCacheProvider struct {
	mu    sync.Mutex
	items map[string]string
}

func newFakeCacheProvider() *fakeCacheProvider {
	return &fakeCacheProvider{items: make(map[string]string)}
}

func (f *fakeCacheProvider) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.items[key]
	if !ok {
		return "", cache.ErrNotFound
	}
	return value, nil
}

func (f *fakeCacheProvider) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[key] = value
	return nil
}

func (f *fakeCacheProvider) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, key)
	return nil
}

func (f *fakeCacheProvider) Close() error { return nil }

type handlerFakes struct {
	verifier *fakeVerifier
	orders   *fakeOrderStore
	invoices *fakeInvoiceReader
	ledger   *fakeLedgerReader
	gateway  *fakeWebhookVerifier
	cache    *fakeCacheProvider
}

func newTestHandlers(t *testing.T, fakes handlerFakes) *Handlers {
	t.Helper()

	if fakes.verifier == nil {
		fakes.verifier = &fakeVerifier{}
	}
	if fakes.orders == nil {
		fakes.orders = &fakeOrderStore{}
	}
	if fakes.invoices == nil {
		fakes.invoices = &fakeInvoiceReader{}
	}
	if fakes.ledger == nil {
		fakes.ledger = &fakeLedgerReader{}
	}
	if fakes.gateway == nil {
		fakes.gateway = &fakeWebhookVerifier{valid: true}
	}
	if fakes.cache == nil {
		fakes.cache = newFakeCacheProvider()
	}

	h, err := New(Dependencies{
		Config:        &config.Config{},
		Verifier:      fakes.verifier,
		OrderStore:    fakes.orders,
		InvoiceStore:  fakes.invoices,
		Ledger:        fakes.ledger,
		Gateway:       fakes.gateway,
		CacheProvider: fakes.cache,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func decodeErrorCode(t *testing.T, body io.Reader) string {
	t.Helper()

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp.Error.Code
}

func TestVerifyPayment_Success(t *testing.T) {
	t.Parallel()

	verifier := &fakeVerifier{result: &services.VerifyPaymentResult{OrderID: "ORD100"}}
	h := newTestHandlers(t, handlerFakes{verifier: verifier})

	body := `{"order_id":"ORD100","payment_id":"pay_1","signature":"sig"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/payments/verify", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.VerifyPayment(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var result services.VerifyPaymentResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.OrderID != "ORD100" {
		t.Errorf("order id = %q, want ORD100", result.OrderID)
	}
	if len(verifier.inputs) != 1 || verifier.inputs[0].PaymentID != "pay_1" {
		t.Errorf("verifier inputs = %+v", verifier.inputs)
	}
}

func TestVerifyPayment_MalformedJSON(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, handlerFakes{})

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/verify", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	h.VerifyPayment(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != "invalid_request" {
		t.Errorf("error code = %q, want invalid_request", code)
	}
}

func TestVerifyPayment_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation failure",
			err:        &services.ValidationError{Field: "OrderID"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "order not found",
			err:        services.ErrOrderNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "order_not_found",
		},
		{
			name:       "signature mismatch",
			err:        services.ErrSignatureMismatch,
			wantStatus: http.StatusForbidden,
			wantCode:   "signature_mismatch",
		},
		{
			name:       "receipt mismatch",
			err:        services.ErrReceiptMismatch,
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "receipt_mismatch",
		},
		{
			name:       "gateway unavailable",
			err:        services.ErrGatewayUnavailable,
			wantStatus: http.StatusBadGateway,
			wantCode:   "gateway_unavailable",
		},
		{
			name:       "unexpected failure",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := newTestHandlers(t, handlerFakes{verifier: &fakeVerifier{err: tc.err}})

			body := `{"order_id":"ORD100","payment_id":"pay_1","signature":"sig"}`
			req := httptest.NewRequest(http.MethodPost, "/v1/payments/verify", strings.NewReader(body))
			rec := httptest.NewRecorder()

			h.VerifyPayment(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if code := decodeErrorCode(t, rec.Body); code != tc.wantCode {
				t.Errorf("error code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	h := newTestHandlers(t, handlerFakes{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestNew_MissingDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(Dependencies{})
	if err == nil {
		t.Fatal("expected error for empty dependencies")
	}
}
