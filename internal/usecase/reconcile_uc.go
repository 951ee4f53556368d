package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/domain/ports/adapter"
	"jsonprompt-saas/internal/domain/ports/repository"
	"jsonprompt-saas/internal/infra/logging"
)

// Compile-time check
var _ ReconcilerUseCase = (*reconcileUC)(nil)

// AsyncRunner decouples fire-and-forget work (notifications) from the
// reconciling transaction. Implemented by the worker pool.
type AsyncRunner interface {
	Submit(task func(ctx context.Context) error) error
}

// ReconcilerUseCase applies normalized payment-provider lifecycle events to
// user plan/credit state. Apply is idempotent per external event id.
type ReconcilerUseCase interface {
	Apply(ctx context.Context, ev *model.PaymentEvent) error
}

type reconcileUC struct {
	users    repository.UserRepository
	tm       repository.TransactionManager
	notifier adapter.Notifier
	runner   AsyncRunner
	log      *zerolog.Logger
}

func NewReconcilerUseCase(users repository.UserRepository, tm repository.TransactionManager, notifier adapter.Notifier, runner AsyncRunner, logger *zerolog.Logger) *reconcileUC {
	return &reconcileUC{users: users, tm: tm, notifier: notifier, runner: runner, log: logger}
}

// Apply locates the user the event correlates to, records the event id, and
// applies the transition, all in one transaction. Re-delivery of a recorded
// event id surfaces ErrDuplicateEvent without touching state.
func (r *reconcileUC) Apply(ctx context.Context, ev *model.PaymentEvent) error {
	defer logging.TraceDuration(r.log, "ReconcileUC.Apply")()

	if err := ev.Validate(); err != nil {
		return err
	}

	var email string
	var notify adapter.NotificationKind
	var notifyPlan model.PlanName

	err := withSerializableRetry(ctx, r.tm, func(ctx context.Context, tx repository.Tx) error {
		email, notify, notifyPlan = "", "", ""

		usr, err := r.locate(ctx, tx, ev)
		if err != nil {
			return err
		}

		// Idempotency guard: the insert of the event id is the CAS predicate,
		// committed atomically with the side effects below.
		fresh, err := r.users.MarkEventProcessed(ctx, tx, usr.ID, ev.EventID)
		if err != nil {
			return err
		}
		if !fresh {
			return domain.ErrDuplicateEvent
		}

		kind, err := r.transition(usr, ev)
		if err != nil {
			return err
		}
		if err := r.users.Save(ctx, tx, usr); err != nil {
			return err
		}
		email, notify, notifyPlan = usr.Email, kind, usr.Plan
		return nil
	})
	if err != nil {
		return err
	}

	if notify != "" {
		r.enqueueNotification(email, notify, notifyPlan)
	}
	return nil
}

// locate resolves the event's correlation ref to a user record. One-time
// events correlate by pending order ref, recurring ones by external
// subscription ref; first-contact events fall back to the provider-side
// customer email.
func (r *reconcileUC) locate(ctx context.Context, tx repository.Tx, ev *model.PaymentEvent) (*model.User, error) {
	var usr *model.User
	var err error

	switch {
	case ev.Type == model.EventOrderCreated, ev.Type == model.EventSubscriptionActivated:
		if ev.Type == model.EventOrderCreated {
			usr, err = r.users.FindByPendingOrder(ctx, tx, ev.CorrelationRef)
		} else {
			usr, err = r.users.FindByExternalRef(ctx, tx, ev.Provider, ev.CorrelationRef)
		}
		if err == nil {
			return usr, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if ev.UserHint == "" {
			return nil, domain.ErrOrphanEvent
		}
		usr, err = r.users.FindByEmail(ctx, tx, ev.UserHint)
	case ev.OneTime():
		usr, err = r.users.FindByPendingOrder(ctx, tx, ev.CorrelationRef)
	default:
		usr, err = r.users.FindByExternalRef(ctx, tx, ev.Provider, ev.CorrelationRef)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrOrphanEvent
	}
	return usr, err
}

// transition mutates usr per the lifecycle table. It returns the
// notification to send after commit, if any.
func (r *reconcileUC) transition(usr *model.User, ev *model.PaymentEvent) (adapter.NotificationKind, error) {
	now := ev.OccurredAt
	if now.IsZero() {
		now = time.Now()
	}

	switch ev.Type {
	case model.EventOrderCreated:
		if usr.PendingOrderRef != "" && usr.PendingOrderRef != ev.CorrelationRef {
			// At most one in-flight payment relationship per user; the second
			// order is ignored until the first resolves.
			r.log.Warn().Str("user_id", usr.ID).Str("order_ref", ev.CorrelationRef).
				Str("pending", usr.PendingOrderRef).Msg("conflicting pending order ignored")
			return "", nil
		}
		usr.PendingOrderRef = ev.CorrelationRef
		return "", nil

	case model.EventPaymentSucceeded:
		plan, err := model.PlanDetails(ev.Plan)
		if err != nil {
			return "", err
		}
		if plan.DurationDays <= 0 {
			// Only time-boxed plans are sold as one-time orders. A plan with
			// no validity window would lapse the instant it was granted;
			// recurring tiers arrive through subscription events instead.
			return "", domain.ErrMalformedEvent
		}
		start := now
		end := start.Add(time.Duration(plan.DurationDays) * 24 * time.Hour)
		usr.Plan = plan.Name
		usr.Credits = plan.CreditGrant
		if plan.Unlimited {
			usr.Credits = model.CreditsUnlimited
		}
		usr.PlanStartDate = &start
		usr.PlanEndDate = &end
		usr.DailyPromptsUsed = 0
		usr.MonthlyPromptsUsed = 0
		usr.LastMonthlyReset = laterOf(usr.LastMonthlyReset, now)
		usr.PendingOrderRef = ""
		return adapter.NotifyPlanActivated, nil

	case model.EventPaymentFailed, model.EventPaymentDropped:
		usr.PendingOrderRef = ""
		return adapter.NotifyPaymentFailed, nil

	case model.EventSubscriptionActivated:
		plan, err := model.PlanDetails(ev.Plan)
		if err != nil {
			return "", err
		}
		usr.Plan = plan.Name
		usr.Credits = plan.CreditGrant
		if plan.Unlimited {
			usr.Credits = model.CreditsUnlimited
		}
		usr.SubscriptionStatus = model.SubscriptionStatusActive
		usr.ExternalProvider = ev.Provider
		usr.ExternalRef = ev.CorrelationRef
		// A recurring activation supersedes any one-time window, so a record
		// never satisfies both "active" definitions at once.
		usr.PlanStartDate = nil
		usr.PlanEndDate = nil
		usr.PendingOrderRef = ""
		usr.MonthlyPromptsUsed = 0
		usr.LastMonthlyReset = laterOf(usr.LastMonthlyReset, now)
		return adapter.NotifyPlanActivated, nil

	case model.EventSubscriptionUpdated:
		if ev.Status != "" && ev.Status != usr.SubscriptionStatus {
			usr.SubscriptionStatus = ev.Status
		}
		// Plan identifier changes never grant credits here; only explicit
		// renewal/activation events do.
		if ev.Plan != "" && ev.Plan != usr.Plan {
			if _, err := model.PlanDetails(ev.Plan); err != nil {
				return "", err
			}
			usr.Plan = ev.Plan
		}
		return "", nil

	case model.EventSubscriptionCanceled, model.EventSubscriptionExpired:
		free, err := model.PlanDetails(model.PlanFree)
		if err != nil {
			return "", err
		}
		usr.Plan = model.PlanFree
		usr.Credits = free.CreditGrant
		usr.DailyPromptsUsed = 0
		usr.LastFreeReset = laterOf(usr.LastFreeReset, now)
		if ev.Type == model.EventSubscriptionCanceled {
			usr.SubscriptionStatus = model.SubscriptionStatusCanceled
		} else {
			usr.SubscriptionStatus = model.SubscriptionStatusExpired
		}
		usr.ExternalProvider = ""
		usr.ExternalRef = ""
		usr.PlanStartDate = nil
		usr.PlanEndDate = nil
		return adapter.NotifyPlanCanceled, nil

	case model.EventInvoicePaid:
		if usr.Plan == model.PlanStarter {
			starter, err := model.PlanDetails(model.PlanStarter)
			if err != nil {
				return "", err
			}
			usr.Credits = starter.CreditGrant
			usr.MonthlyPromptsUsed = 0
			usr.LastMonthlyReset = laterOf(usr.LastMonthlyReset, now)
		}
		// A paid invoice ends any grace period.
		if usr.SubscriptionStatus == model.SubscriptionStatusPastDue {
			usr.SubscriptionStatus = model.SubscriptionStatusActive
		}
		return adapter.NotifyPlanRenewed, nil

	case model.EventInvoiceFailed:
		// Grace period: access keeps flowing through the usage gate until
		// cancel/expire arrives.
		usr.SubscriptionStatus = model.SubscriptionStatusPastDue
		return adapter.NotifyPaymentFailed, nil

	default:
		// Forward-compatible: unknown types are recorded and ignored.
		r.log.Info().Str("provider", ev.Provider).Str("type", string(ev.Type)).
			Str("event_id", ev.EventID).Msg("ignoring unknown event type")
		return "", nil
	}
}

// laterOf keeps reset stamps monotonic: a delayed webhook carrying a stale
// timestamp must not move them backwards and re-arm a lazy reset.
func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

func (r *reconcileUC) enqueueNotification(email string, kind adapter.NotificationKind, plan model.PlanName) {
	if r.notifier == nil || email == "" {
		return
	}
	task := func(ctx context.Context) error {
		if err := r.notifier.Send(ctx, email, kind, string(plan)); err != nil {
			r.log.Warn().Err(err).Str("kind", string(kind)).Msg("notification failed")
		}
		return nil
	}
	if r.runner == nil {
		go func() { _ = task(context.Background()) }()
		return
	}
	if err := r.runner.Submit(task); err != nil {
		r.log.Warn().Err(err).Msg("notification queue full, dropping")
	}
}
