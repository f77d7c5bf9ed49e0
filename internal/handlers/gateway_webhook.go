package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/payreconapp/payrecon/internal/cache"
	"github.com/payreconapp/payrecon/internal/models"
)

// webhookIdempotencyTTL is how long processed webhook event ids are kept for
// deduplication.
const webhookIdempotencyTTL = 24 * time.Hour

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				Amount  int64  `json:"amount"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// GatewayWebhook ingests gateway payment events. It only caches the payload
// onto the order; applying it is the reconciliation sweep's job, which is what
// gives the synchronous path its head start (the wait window).
func (h *Handlers) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
		return
	}

	signature := r.Header.Get("X-Razorpay-Signature")
	if signature == "" || !h.gateway.VerifyWebhookSignature(body, signature) {
		logger.Error("webhook signature validation failed")
		writeError(w, http.StatusBadRequest, "signature_mismatch", "invalid webhook signature")
		return
	}

	eventID := r.Header.Get("X-Razorpay-Event-Id")
	if eventID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing event id")
		return
	}

	cacheKey := cache.EventKey("razorpay", eventID)
	if _, err := h.cacheProvider.Get(ctx, cacheKey); err == nil {
		logger.Info("webhook already processed", "event_id", eventID)
		w.WriteHeader(http.StatusOK)
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	kind := models.EventKind(envelope.Event)
	switch kind {
	case models.EventPaymentAuthorized, models.EventOrderPaid:
	default:
		logger.Info("unhandled gateway event type", "type", envelope.Event)
		w.WriteHeader(http.StatusOK)
		return
	}

	entity := envelope.Payload.Payment.Entity
	if entity.OrderID == "" || entity.ID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing payment entity fields")
		return
	}

	// Acknowledge events for orders this store does not hold. The gateway
	// delivers to every subscriber; a non-2xx here would make it redeliver
	// forever for an order that will never exist locally.
	if _, err := h.orderStore.GetByGatewayOrderID(ctx, entity.OrderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.Info("webhook for unknown gateway order", "gateway_order_id", entity.OrderID, "event", envelope.Event)
			w.WriteHeader(http.StatusOK)
			return
		}
		logger.Error("failed to load order for gateway event", "error", err, "gateway_order_id", entity.OrderID)
		writeError(w, http.StatusInternalServerError, "internal", "failed to record event")
		return
	}

	event := models.PaymentEvent{PaymentID: entity.ID, Amount: entity.Amount}
	if err := h.orderStore.CacheGatewayEvent(ctx, entity.OrderID, kind, event, time.Now().UTC()); err != nil {
		logger.Error("failed to cache gateway event", "error", err, "gateway_order_id", entity.OrderID, "event", envelope.Event)
		writeError(w, http.StatusInternalServerError, "internal", "failed to record event")
		return
	}

	if err := h.cacheProvider.Set(ctx, cacheKey, "processed", webhookIdempotencyTTL); err != nil {
		logger.Error("failed to mark webhook as processed in cache", "error", err)
	}

	logger.Info("gateway event cached", "event_id", eventID, "event", envelope.Event, "gateway_order_id", entity.OrderID)
	w.WriteHeader(http.StatusOK)
}
