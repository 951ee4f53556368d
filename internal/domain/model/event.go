package model

import (
	"time"

	"jsonprompt-saas/internal/domain"
)

type EventType string

// Normalized lifecycle event types. Providers speak their own dialects; the
// webhook normalizers translate into these before anything touches user state.
const (
	// One-time order model
	EventOrderCreated     EventType = "order.created"
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentDropped   EventType = "payment.dropped"

	// Recurring subscription model
	EventSubscriptionActivated EventType = "subscription.activated"
	EventSubscriptionUpdated   EventType = "subscription.updated"
	EventSubscriptionCanceled  EventType = "subscription.canceled"
	EventSubscriptionExpired   EventType = "subscription.expired"
	EventInvoicePaid           EventType = "invoice.payment_succeeded"
	EventInvoiceFailed         EventType = "invoice.payment_failed"
)

// PaymentEvent is the single canonical shape consumed by the reconciler.
// Delivery is at-least-once and may be concurrent; EventID is the
// idempotency key.
type PaymentEvent struct {
	Provider       string
	EventID        string
	Type           EventType
	CorrelationRef string // order ref (one-time) or subscription ref (recurring)

	// Optional, depending on Type.
	Plan       PlanName           // activation / payment.succeeded
	Status     SubscriptionStatus // subscription.updated target
	UserHint   string             // provider-side customer email, for first activation
	Amount     int64              // cents
	OccurredAt time.Time
}

// Validate rejects events that cannot be correlated or deduplicated.
func (e *PaymentEvent) Validate() error {
	if e.Provider == "" || e.EventID == "" || e.Type == "" || e.CorrelationRef == "" {
		return domain.ErrMalformedEvent
	}
	return nil
}

// OneTime reports whether the event belongs to the one-time order model.
func (e *PaymentEvent) OneTime() bool {
	switch e.Type {
	case EventOrderCreated, EventPaymentSucceeded, EventPaymentFailed, EventPaymentDropped:
		return true
	}
	return false
}
