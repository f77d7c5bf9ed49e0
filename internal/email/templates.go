package email

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
)

// PaymentInfo carries the fields the payment confirmation templates render.
type PaymentInfo struct {
	OrderNumber   string
	CustomerName  string
	CustomerEmail string
	Amount        string
	PaymentID     string
	InvoiceNumber string
}

const paymentConfirmationSubject = "Payment received for order {{.OrderNumber}}"

const paymentConfirmationText = `Hi {{if .CustomerName}}{{.CustomerName}}{{else}}there{{end}},

We received your payment of {{.Amount}} for order {{.OrderNumber}}.
{{if .PaymentID}}Payment reference: {{.PaymentID}}
{{end}}{{if .InvoiceNumber}}Your invoice number is {{.InvoiceNumber}}.
{{end}}
Your order is now being processed. We'll be in touch when it ships.
`

const paymentConfirmationHTML = `<p>Hi {{if .CustomerName}}{{.CustomerName}}{{else}}there{{end}},</p>
<p>We received your payment of <strong>{{.Amount}}</strong> for order <strong>{{.OrderNumber}}</strong>.</p>
{{if .PaymentID}}<p>Payment reference: <code>{{.PaymentID}}</code></p>
{{end}}{{if .InvoiceNumber}}<p>Your invoice number is <strong>{{.InvoiceNumber}}</strong>.</p>
{{end}}<p>Your order is now being processed. We'll be in touch when it ships.</p>
`

// SendPaymentConfirmation renders the confirmation templates and sends the
// result through the provider.
func SendPaymentConfirmation(ctx context.Context, provider Provider, info PaymentInfo) error {
	if provider == nil {
		return fmt.Errorf("email provider is required")
	}
	if info.CustomerEmail == "" {
		return fmt.Errorf("customer email is required")
	}

	subject, err := render("subject", paymentConfirmationSubject, info)
	if err != nil {
		return err
	}
	text, err := render("text", paymentConfirmationText, info)
	if err != nil {
		return err
	}
	html, err := render("html", paymentConfirmationHTML, info)
	if err != nil {
		return err
	}

	return provider.SendEmail(ctx, &Email{
		To:      info.CustomerEmail,
		Subject: subject,
		Text:    text,
		HTML:    html,
	})
}

func render(name, body string, info PaymentInfo) (string, error) {
	tmpl, err := template.New(name).Parse(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, info); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", name, err)
	}
	return buf.String(), nil
}
