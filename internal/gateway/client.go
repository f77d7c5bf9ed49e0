// Package gateway wraps the Razorpay SDK behind a narrow client interface so
// services receive an injected, stateless collaborator instead of a
// process-wide API singleton.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// StatusPaid is the gateway order status reported once capture completed.
const StatusPaid = "paid"

// Order is the authoritative order snapshot fetched from the gateway. Receipt
// carries the local order id the gateway order was created for; Amount is in
// minor currency units.
type Order struct {
	Receipt string
	Amount  int64
	Status  string
}

type Client interface {
	FetchOrder(ctx context.Context, gatewayOrderID string) (*Order, error)
	VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

const (
	defaultFetchAttempts = 3
	defaultRetryDelay    = 2 * time.Second
)

type RazorpayClient struct {
	api           *razorpay.Client
	keySecret     string
	webhookSecret string
	fetchAttempts int
	retryDelay    time.Duration
}

func NewRazorpayClient(keyID, keySecret, webhookSecret string) *RazorpayClient {
	return &RazorpayClient{
		api:           razorpay.NewClient(keyID, keySecret),
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		fetchAttempts: defaultFetchAttempts,
		retryDelay:    defaultRetryDelay,
	}
}

// FetchOrder retrieves the order snapshot, retrying a bounded number of times.
// Callers that poll (the sweep) retry naturally on their next pass, so there
// is no backoff escalation here.
func (c *RazorpayClient) FetchOrder(ctx context.Context, gatewayOrderID string) (*Order, error) {
	if strings.TrimSpace(gatewayOrderID) == "" {
		return nil, fmt.Errorf("gateway order id is required")
	}

	var lastErr error
	for attempt := 1; attempt <= c.fetchAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := c.api.Order.Fetch(gatewayOrderID, nil, nil)
		if err == nil {
			return parseOrder(data)
		}
		lastErr = err

		if attempt < c.fetchAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("failed to fetch gateway order %s after %d attempts: %w", gatewayOrderID, c.fetchAttempts, lastErr)
}

func (c *RazorpayClient) VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool {
	params := map[string]interface{}{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": paymentID,
	}
	return utils.VerifyPaymentSignature(params, signature, c.keySecret)
}

func (c *RazorpayClient) VerifyWebhookSignature(body []byte, signature string) bool {
	return utils.VerifyWebhookSignature(string(body), signature, c.webhookSecret)
}

func parseOrder(data map[string]interface{}) (*Order, error) {
	if data == nil {
		return nil, fmt.Errorf("empty gateway order response")
	}

	order := &Order{}
	if receipt, ok := data["receipt"].(string); ok {
		order.Receipt = receipt
	}
	if status, ok := data["status"].(string); ok {
		order.Status = status
	}

	switch amount := data["amount"].(type) {
	case float64:
		order.Amount = int64(amount)
	case int64:
		order.Amount = amount
	case json.Number:
		parsed, err := amount.Int64()
		if err != nil {
			return nil, fmt.Errorf("invalid gateway order amount %q: %w", amount.String(), err)
		}
		order.Amount = parsed
	case nil:
		return nil, fmt.Errorf("gateway order response missing amount")
	default:
		return nil, fmt.Errorf("unexpected gateway order amount type %T", amount)
	}

	return order, nil
}
