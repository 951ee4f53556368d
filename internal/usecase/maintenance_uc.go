package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/domain/ports/repository"
	"jsonprompt-saas/internal/infra/logging"
)

// MaintenanceUseCase backs the periodic sweep. Resets stay lazy at the gate;
// the sweep just keeps stored counters honest for users who went quiet, and
// purges artifacts past retention.
type MaintenanceUseCase interface {
	// ApplyDueResets persists pending daily/monthly resets for a batch of
	// idle users. Returns how many of each were applied.
	ApplyDueResets(ctx context.Context, now time.Time, limit int) (daily, monthly int, err error)
	// PurgeExpiredPrompts removes artifacts past their retention window.
	PurgeExpiredPrompts(ctx context.Context, now time.Time) (int64, error)
}

var _ MaintenanceUseCase = (*maintenanceUC)(nil)

type maintenanceUC struct {
	users   repository.UserRepository
	prompts repository.PromptRepository
	tm      repository.TransactionManager
	log     *zerolog.Logger
}

func NewMaintenanceUseCase(users repository.UserRepository, prompts repository.PromptRepository, tm repository.TransactionManager, logger *zerolog.Logger) *maintenanceUC {
	return &maintenanceUC{users: users, prompts: prompts, tm: tm, log: logger}
}

func (m *maintenanceUC) ApplyDueResets(ctx context.Context, now time.Time, limit int) (int, int, error) {
	defer logging.TraceDuration(m.log, "MaintenanceUC.ApplyDueResets")()

	var daily, monthly int
	err := withSerializableRetry(ctx, m.tm, func(ctx context.Context, tx repository.Tx) error {
		daily, monthly = 0, 0
		due, err := m.users.ListResetDue(ctx, tx, now, limit)
		if err != nil {
			return err
		}
		for _, usr := range due {
			// Lapsed plans must not be re-granted; the gate reports those
			// as not active instead.
			if usr.PlanLapsed(now) {
				continue
			}
			changed := false
			if usr.ResetDailyIfDue(now) {
				daily++
				changed = true
			}
			if usr.ResetMonthlyIfDue(now) {
				monthly++
				changed = true
			}
			if !changed {
				continue
			}
			if err := m.users.Save(ctx, tx, usr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return daily, monthly, nil
}

func (m *maintenanceUC) PurgeExpiredPrompts(ctx context.Context, now time.Time) (int64, error) {
	defer logging.TraceDuration(m.log, "MaintenanceUC.PurgeExpiredPrompts")()
	return m.prompts.DeleteExpired(ctx, repository.NoTX, now)
}
