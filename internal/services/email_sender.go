package services

import (
	"context"

	"github.com/payreconapp/payrecon/internal/db"
	"github.com/payreconapp/payrecon/internal/email"
)

// PaymentEmailSender notifies the customer after a successful payment
// transition. Failures are always non-fatal to the transition that triggered
// them.
type PaymentEmailSender interface {
	SendPaymentConfirmation(ctx context.Context, order *db.Order, invoice *db.Invoice) error
}

type EmailPaymentSender struct {
	provider email.Provider
}

func NewEmailPaymentSender(provider email.Provider) *EmailPaymentSender {
	return &EmailPaymentSender{provider: provider}
}

func (s *EmailPaymentSender) SendPaymentConfirmation(ctx context.Context, order *db.Order, invoice *db.Invoice) error {
	if order.CustomerEmail == "" {
		// nothing to send; orders placed without an email are legal
		return nil
	}

	info := email.PaymentInfo{
		OrderNumber:   order.OrderID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Amount:        formatAmount(order.Currency, order.GrandTotal),
	}
	if invoice != nil {
		info.PaymentID = invoice.TransactionID
		info.InvoiceNumber = formatInvoiceNumber(invoice.InvoiceNumber)
	}

	return email.SendPaymentConfirmation(ctx, s.provider, info)
}

type noopPaymentEmailSender struct{}

func (noopPaymentEmailSender) SendPaymentConfirmation(ctx context.Context, order *db.Order, invoice *db.Invoice) error {
	return nil
}
