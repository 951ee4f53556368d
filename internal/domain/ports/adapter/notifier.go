package adapter

import "context"

type NotificationKind string

const (
	NotifyPlanActivated NotificationKind = "plan_activated"
	NotifyPlanCanceled  NotificationKind = "plan_canceled"
	NotifyPaymentFailed NotificationKind = "payment_failed"
	NotifyPlanRenewed   NotificationKind = "plan_renewed"
)

// Notifier delivers best-effort user notifications. A failed Send must never
// roll back the state transition that triggered it; callers log and move on.
type Notifier interface {
	Send(ctx context.Context, email string, kind NotificationKind, planName string) error
}
