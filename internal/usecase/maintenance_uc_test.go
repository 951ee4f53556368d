//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/usecase"
)

func TestMaintenanceApplyDueResets(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	registered := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)

	t.Run("persists overdue resets for idle users", func(t *testing.T) {
		repo := NewMockUserRepo()
		freeUser := newFreeUser(t, "f1", registered)
		freeUser.Credits = 0
		repo.Add(freeUser)

		starter := newFreeUser(t, "s1", registered)
		starter.Plan = model.PlanStarter
		starter.Credits = 0
		starter.LastMonthlyReset = registered
		starter.SubscriptionStatus = model.SubscriptionStatusActive
		repo.Add(starter)

		uc := usecase.NewMaintenanceUseCase(repo, NewMockPromptRepo(), NewMockTxManager(), logger)
		now := time.Date(2026, 2, 2, 1, 0, 0, 0, time.UTC)
		daily, monthly, err := uc.ApplyDueResets(ctx, now, 100)
		if err != nil {
			t.Fatalf("ApplyDueResets: %v", err)
		}
		if daily != 1 || monthly != 1 {
			t.Fatalf("applied = %d daily / %d monthly, want 1/1", daily, monthly)
		}
		free, _ := model.PlanDetails(model.PlanFree)
		if got := repo.Get("f1").Credits; got != free.CreditGrant {
			t.Fatalf("free credits = %d, want %d", got, free.CreditGrant)
		}
		starterPlan, _ := model.PlanDetails(model.PlanStarter)
		if got := repo.Get("s1").Credits; got != starterPlan.CreditGrant {
			t.Fatalf("starter credits = %d, want %d", got, starterPlan.CreditGrant)
		}
	})

	t.Run("lapsed users are skipped", func(t *testing.T) {
		repo := NewMockUserRepo()
		u := newFreeUser(t, "s1", registered)
		u.Plan = model.PlanStarter
		u.Credits = 0
		u.LastMonthlyReset = registered
		end := registered.AddDate(0, 0, 30)
		u.PlanEndDate = &end
		repo.Add(u)

		uc := usecase.NewMaintenanceUseCase(repo, NewMockPromptRepo(), NewMockTxManager(), logger)
		_, monthly, err := uc.ApplyDueResets(ctx, registered.AddDate(0, 3, 0), 100)
		if err != nil {
			t.Fatalf("ApplyDueResets: %v", err)
		}
		if monthly != 0 {
			t.Fatalf("monthly = %d, lapsed user must not be re-granted", monthly)
		}
		if got := repo.Get("s1").Credits; got != 0 {
			t.Fatalf("credits = %d, want untouched 0", got)
		}
	})
}

func TestMaintenancePurgeExpiredPrompts(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	prompts := NewMockPromptRepo()
	fresh, _ := model.NewPromptRecord("u1", "in", "{}", model.TierStandard, 1, now)
	old, _ := model.NewPromptRecord("u1", "in", "{}", model.TierStandard, 1, now.Add(-48*time.Hour))
	_ = prompts.Save(ctx, nil, fresh)
	_ = prompts.Save(ctx, nil, old)

	uc := usecase.NewMaintenanceUseCase(NewMockUserRepo(), prompts, NewMockTxManager(), logger)
	n, err := uc.PurgeExpiredPrompts(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpiredPrompts: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged = %d, want 1", n)
	}
	if _, err := prompts.FindByID(ctx, nil, fresh.ID); err != nil {
		t.Fatalf("fresh record should remain: %v", err)
	}
}
