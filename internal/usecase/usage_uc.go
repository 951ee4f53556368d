package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/domain/ports/repository"
	"jsonprompt-saas/internal/infra/logging"
)

// Compile-time check
var _ UsageGateUseCase = (*usageUC)(nil)

// GateResult is what the gate reports back for client messaging, on success
// and on ErrNoCreditsRemaining alike.
type GateResult struct {
	CreditsRemaining int
	DailyLimit       int
	MonthlyLimit     int
	Unlimited        bool
}

// UsageGateUseCase is the pre-flight check in front of every credit-consuming
// action.
type UsageGateUseCase interface {
	// CheckAndConsume applies expiry check, lazy resets, and consumption as
	// one atomic step against the user row. On ErrNoCreditsRemaining the
	// returned GateResult still carries limits for the error response.
	CheckAndConsume(ctx context.Context, userID string, now time.Time) (*GateResult, error)
	// Snapshot reports the effective balance without consuming. Lazy resets
	// are computed but not persisted.
	Snapshot(ctx context.Context, userID string, now time.Time) (*GateResult, error)
}

type usageUC struct {
	users repository.UserRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewUsageGateUseCase(users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *usageUC {
	return &usageUC{users: users, tm: tm, log: logger}
}

func (u *usageUC) CheckAndConsume(ctx context.Context, userID string, now time.Time) (*GateResult, error) {
	defer logging.TraceDuration(u.log, "UsageUC.CheckAndConsume")()

	var res *GateResult
	var gateErr error
	err := withSerializableRetry(ctx, u.tm, func(ctx context.Context, tx repository.Tx) error {
		res, gateErr = nil, nil
		usr, err := u.users.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		plan, err := model.PlanDetails(usr.Plan)
		if err != nil {
			return err
		}

		// Expiry before resets: resetting first would re-grant credits to a
		// lapsed one-time plan.
		if usr.PlanLapsed(now) {
			gateErr = domain.ErrNotActive
			res = snapshotOf(usr, plan)
			return nil
		}

		if usr.ResetDailyIfDue(now) {
			u.log.Debug().Str("user_id", usr.ID).Msg("daily credits reset")
		}
		if usr.ResetMonthlyIfDue(now) {
			u.log.Debug().Str("user_id", usr.ID).Msg("monthly credits reset")
		}

		if !usr.CanConsume() {
			gateErr = domain.ErrNoCreditsRemaining
			res = snapshotOf(usr, plan)
			// Persist the reset even when the request is rejected, so the
			// stored counters stay honest.
			return u.users.Save(ctx, tx, usr)
		}

		remaining, err := usr.Consume()
		if err != nil {
			return err
		}
		usr.Touch(now)
		if err := u.users.Save(ctx, tx, usr); err != nil {
			return err
		}
		res = snapshotOf(usr, plan)
		res.CreditsRemaining = remaining
		return nil
	})
	if err != nil {
		return nil, err
	}
	if gateErr != nil {
		return res, gateErr
	}
	return res, nil
}

func (u *usageUC) Snapshot(ctx context.Context, userID string, now time.Time) (*GateResult, error) {
	defer logging.TraceDuration(u.log, "UsageUC.Snapshot")()

	usr, err := u.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	plan, err := model.PlanDetails(usr.Plan)
	if err != nil {
		return nil, err
	}
	// Apply resets on the in-memory copy only; the next gate pass persists.
	if !usr.PlanLapsed(now) {
		usr.ResetDailyIfDue(now)
		usr.ResetMonthlyIfDue(now)
	}
	return snapshotOf(usr, plan), nil
}

func snapshotOf(usr *model.User, plan model.Plan) *GateResult {
	return &GateResult{
		CreditsRemaining: usr.Credits,
		DailyLimit:       plan.DailyLimit,
		MonthlyLimit:     plan.MonthlyLimit,
		Unlimited:        plan.Unlimited,
	}
}
