package email

import (
	"context"
	"strings"
	"testing"
)

type fakeProvider struct {
	sent []*Email
	err  error
}

func (f *fakeProvider) SendEmail(ctx context.Context, email *Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

func (f *fakeProvider) ValidateAPIKey(ctx context.Context) error { return nil }

func TestSendPaymentConfirmation(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{}
	info := PaymentInfo{
		OrderNumber:   "ORD100",
		CustomerName:  "Buyer",
		CustomerEmail: "buyer@example.com",
		Amount:        "INR 500.00",
		PaymentID:     "pay_123",
		InvoiceNumber: "1001",
	}

	if err := SendPaymentConfirmation(t.Context(), provider, info); err != nil {
		t.Fatalf("SendPaymentConfirmation() error = %v", err)
	}

	if len(provider.sent) != 1 {
		t.Fatalf("emails sent = %d, want 1", len(provider.sent))
	}
	sent := provider.sent[0]
	if sent.To != "buyer@example.com" {
		t.Errorf("to = %q", sent.To)
	}
	if !strings.Contains(sent.Subject, "ORD100") {
		t.Errorf("subject = %q, want order number", sent.Subject)
	}
	if !strings.Contains(sent.Text, "INR 500.00") || !strings.Contains(sent.Text, "1001") {
		t.Errorf("text body missing fields: %q", sent.Text)
	}
	if !strings.Contains(sent.HTML, "pay_123") {
		t.Errorf("html body missing payment reference: %q", sent.HTML)
	}
}

func TestSendPaymentConfirmation_OptionalFieldsOmitted(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{}
	info := PaymentInfo{
		OrderNumber:   "ORD100",
		CustomerEmail: "buyer@example.com",
		Amount:        "INR 500.00",
	}

	if err := SendPaymentConfirmation(t.Context(), provider, info); err != nil {
		t.Fatalf("SendPaymentConfirmation() error = %v", err)
	}

	sent := provider.sent[0]
	if !strings.Contains(sent.Text, "Hi there") {
		t.Errorf("text should greet anonymously: %q", sent.Text)
	}
	if strings.Contains(sent.Text, "invoice number") {
		t.Errorf("text should omit invoice line: %q", sent.Text)
	}
}

func TestSendPaymentConfirmation_MissingRecipient(t *testing.T) {
	t.Parallel()

	err := SendPaymentConfirmation(t.Context(), &fakeProvider{}, PaymentInfo{OrderNumber: "ORD100"})
	if err == nil {
		t.Fatal("expected error for missing recipient")
	}
}
