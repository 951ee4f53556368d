//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/domain/ports/repository"
	"jsonprompt-saas/internal/usecase"
)

func newFreeUser(t *testing.T, id string, registered time.Time) *model.User {
	t.Helper()
	u, err := model.NewUser(id, id+"@example.com", registered)
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	return u
}

func TestUsageGateCheckAndConsume(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("consumes one credit and persists", func(t *testing.T) {
		repo := NewMockUserRepo()
		registered := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
		repo.Add(newFreeUser(t, "u1", registered))

		uc := usecase.NewUsageGateUseCase(repo, NewMockTxManager(), logger)
		res, err := uc.CheckAndConsume(ctx, "u1", registered.Add(time.Minute))
		if err != nil {
			t.Fatalf("CheckAndConsume: %v", err)
		}
		free, _ := model.PlanDetails(model.PlanFree)
		if res.CreditsRemaining != free.CreditGrant-1 {
			t.Fatalf("remaining = %d, want %d", res.CreditsRemaining, free.CreditGrant-1)
		}
		stored := repo.Get("u1")
		if stored.Credits != free.CreditGrant-1 || stored.TotalPromptsUsed != 1 {
			t.Fatalf("stored credits=%d total=%d, want %d/1", stored.Credits, stored.TotalPromptsUsed, free.CreditGrant-1)
		}
	})

	t.Run("lazy daily reset happens before the consume decision", func(t *testing.T) {
		repo := NewMockUserRepo()
		registered := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
		u := newFreeUser(t, "u1", registered)
		u.Credits = 0
		u.DailyPromptsUsed = 3
		repo.Add(u)

		uc := usecase.NewUsageGateUseCase(repo, NewMockTxManager(), logger)
		now := time.Date(2026, 1, 2, 0, 5, 0, 0, time.UTC)
		res, err := uc.CheckAndConsume(ctx, "u1", now)
		if err != nil {
			t.Fatalf("CheckAndConsume after midnight: %v", err)
		}
		free, _ := model.PlanDetails(model.PlanFree)
		if res.CreditsRemaining != free.CreditGrant-1 {
			t.Fatalf("remaining = %d, want %d", res.CreditsRemaining, free.CreditGrant-1)
		}
		stored := repo.Get("u1")
		if !stored.LastFreeReset.Equal(now) {
			t.Fatalf("last reset = %v, want %v", stored.LastFreeReset, now)
		}
	})

	t.Run("rejects at zero credits and persists the reset", func(t *testing.T) {
		repo := NewMockUserRepo()
		registered := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		u := newFreeUser(t, "u1", registered)
		u.Credits = 0
		repo.Add(u)

		uc := usecase.NewUsageGateUseCase(repo, NewMockTxManager(), logger)
		res, err := uc.CheckAndConsume(ctx, "u1", registered.Add(time.Hour))
		if !errors.Is(err, domain.ErrNoCreditsRemaining) {
			t.Fatalf("err = %v, want ErrNoCreditsRemaining", err)
		}
		if res == nil || res.CreditsRemaining != 0 {
			t.Fatalf("result = %+v, want zero-credit snapshot", res)
		}
	})

	t.Run("expired one-time window wins over reset", func(t *testing.T) {
		repo := NewMockUserRepo()
		registered := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		u := newFreeUser(t, "u1", registered)
		u.Plan = model.PlanStarter
		u.Credits = 10
		start := registered
		end := registered.AddDate(0, 0, 30)
		u.PlanStartDate, u.PlanEndDate = &start, &end
		u.LastMonthlyReset = registered
		repo.Add(u)
		before := repo.Get("u1")

		uc := usecase.NewUsageGateUseCase(repo, NewMockTxManager(), logger)
		now := end.AddDate(0, 1, 0)
		_, err := uc.CheckAndConsume(ctx, "u1", now)
		if !errors.Is(err, domain.ErrNotActive) {
			t.Fatalf("err = %v, want ErrNotActive", err)
		}
		// The lapsed user must not have been re-granted by a monthly reset.
		after := repo.Get("u1")
		if after.Credits != before.Credits || !after.LastMonthlyReset.Equal(before.LastMonthlyReset) {
			t.Fatalf("lapsed user state changed: %+v", after)
		}
	})

	t.Run("past_due recurring user keeps consuming", func(t *testing.T) {
		repo := NewMockUserRepo()
		registered := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		u := newFreeUser(t, "u1", registered)
		u.Plan = model.PlanPremium
		u.Credits = model.CreditsUnlimited
		u.SubscriptionStatus = model.SubscriptionStatusPastDue
		repo.Add(u)

		uc := usecase.NewUsageGateUseCase(repo, NewMockTxManager(), logger)
		res, err := uc.CheckAndConsume(ctx, "u1", registered.AddDate(0, 6, 0))
		if err != nil {
			t.Fatalf("CheckAndConsume: %v", err)
		}
		if !res.Unlimited || res.CreditsRemaining != model.CreditsUnlimited {
			t.Fatalf("result = %+v, want unlimited", res)
		}
	})

	t.Run("retries serialization failures then succeeds", func(t *testing.T) {
		repo := NewMockUserRepo()
		registered := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
		repo.Add(newFreeUser(t, "u1", registered))

		tm := NewMockTxManager()
		attempts := 0
		tm.WithTxFunc = func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			attempts++
			if attempts < 3 {
				return &pgconn.PgError{Code: "40001"}
			}
			return fn(ctx, repository.NoTX)
		}

		uc := usecase.NewUsageGateUseCase(repo, tm, logger)
		if _, err := uc.CheckAndConsume(ctx, "u1", registered.Add(time.Minute)); err != nil {
			t.Fatalf("CheckAndConsume: %v", err)
		}
		if attempts != 3 {
			t.Fatalf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("exhausted retries map to ErrRetryLater", func(t *testing.T) {
		tm := NewMockTxManager()
		tm.WithTxFunc = func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			return &pgconn.PgError{Code: "40001"}
		}
		uc := usecase.NewUsageGateUseCase(NewMockUserRepo(), tm, logger)
		if _, err := uc.CheckAndConsume(ctx, "u1", time.Now()); !errors.Is(err, domain.ErrRetryLater) {
			t.Fatalf("err = %v, want ErrRetryLater", err)
		}
	})
}

func TestUsageGateSnapshot(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("reports the post-reset balance without persisting", func(t *testing.T) {
		repo := NewMockUserRepo()
		registered := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
		u := newFreeUser(t, "u1", registered)
		u.Credits = 0
		repo.Add(u)

		uc := usecase.NewUsageGateUseCase(repo, NewMockTxManager(), logger)
		now := time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)
		res, err := uc.Snapshot(ctx, "u1", now)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		free, _ := model.PlanDetails(model.PlanFree)
		if res.CreditsRemaining != free.CreditGrant {
			t.Fatalf("remaining = %d, want %d", res.CreditsRemaining, free.CreditGrant)
		}
		if stored := repo.Get("u1"); stored.Credits != 0 {
			t.Fatalf("snapshot must not persist, stored credits = %d", stored.Credits)
		}
	})
}
