package models

import "testing"

func TestReconciliationMarkerTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		marker ReconciliationMarker
		want   bool
	}{
		{MarkerDefault, false},
		{MarkerPaymentAuthorizedCompleted, false},
		{MarkerOrderPaidAfterManualCapture, false},
		{MarkerInvoiceGenerated, true},
		{MarkerInvoiceGenerationNotPossible, true},
		{MarkerPaymentAuthorizedCronRepeat, false},
	}

	for _, tc := range tests {
		if got := tc.marker.Terminal(); got != tc.want {
			t.Errorf("%s.Terminal() = %v, want %v", tc.marker, got, tc.want)
		}
	}
}

func TestOrderCanInvoice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		order Order
		want  bool
	}{
		{
			name:  "eligible order",
			order: Order{LifecycleState: StateNew, GrandTotal: 50000},
			want:  true,
		},
		{
			name:  "canceled order",
			order: Order{LifecycleState: StateCanceled, GrandTotal: 50000},
			want:  false,
		},
		{
			name:  "zero total",
			order: Order{LifecycleState: StateNew, GrandTotal: 0},
			want:  false,
		},
		{
			name:  "already invoiced",
			order: Order{LifecycleState: StateProcessing, GrandTotal: 50000, ReconciliationMarker: MarkerInvoiceGenerated},
			want:  false,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.order.CanInvoice(); got != tc.want {
				t.Fatalf("CanInvoice() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGatewayEventsByKind(t *testing.T) {
	t.Parallel()

	authorized := &PaymentEvent{PaymentID: "pay_1", Amount: 100}
	paid := &PaymentEvent{PaymentID: "pay_2", Amount: 100}
	events := GatewayEvents{Authorized: authorized, Paid: paid}

	if events.ByKind(EventPaymentAuthorized) != authorized {
		t.Error("ByKind(payment.authorized) returned wrong slot")
	}
	if events.ByKind(EventOrderPaid) != paid {
		t.Error("ByKind(order.paid) returned wrong slot")
	}
	if events.ByKind("refund.created") != nil {
		t.Error("ByKind of an unknown kind should be nil")
	}
	if (GatewayEvents{}).Empty() != true || events.Empty() {
		t.Error("Empty() misreported")
	}
}

func TestAddStatusComment(t *testing.T) {
	t.Parallel()

	order := Order{}
	order.AddStatusComment("Captured amount of INR 500.00 online.")
	order.AddStatusComment("")
	if len(order.StatusComments) != 1 {
		t.Fatalf("status comments = %d, want 1", len(order.StatusComments))
	}
}
