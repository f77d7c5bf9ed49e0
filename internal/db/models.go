package db

import "github.com/payreconapp/payrecon/internal/models"

type Order = models.Order
type Invoice = models.Invoice
type Transaction = models.Transaction
type LifecycleState = models.LifecycleState
type ReconciliationMarker = models.ReconciliationMarker
type EventKind = models.EventKind
type PaymentEvent = models.PaymentEvent
type GatewayEvents = models.GatewayEvents

const (
	StateNew        = models.StateNew
	StateProcessing = models.StateProcessing
	StateCanceled   = models.StateCanceled
)
