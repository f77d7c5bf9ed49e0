package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/payreconapp/payrecon/internal/services"
)

// VerifyPayment accepts a client-asserted payment completion and runs the
// synchronous verification path. Only input, lookup, and security failures
// surface to the caller; partial failures inside a committed transition do
// not.
func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	var input services.VerifyPaymentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	result, err := h.verifier.VerifyPayment(ctx, input)
	if err != nil {
		h.writeVerifyError(w, r, err)
		return
	}

	logger.Info("payment verification succeeded", "order_id", result.OrderID)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) writeVerifyError(w http.ResponseWriter, r *http.Request, err error) {
	logger := h.loggerFromContext(r.Context())

	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "invalid_request", validationErr.Error())
	case errors.Is(err, services.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, services.ErrSignatureMismatch):
		logger.Error("rejected payment verification", "error", err)
		writeError(w, http.StatusForbidden, "signature_mismatch", err.Error())
	case errors.Is(err, services.ErrReceiptMismatch):
		logger.Error("rejected payment verification", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "receipt_mismatch", err.Error())
	case errors.Is(err, services.ErrGatewayUnavailable):
		logger.Error("payment verification failed upstream", "error", err)
		writeError(w, http.StatusBadGateway, "gateway_unavailable", "payment gateway is unavailable, try again")
	default:
		logger.Error("payment verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "payment verification failed")
	}
}
