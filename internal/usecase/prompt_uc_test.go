//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/domain/ports/repository"
	"jsonprompt-saas/internal/usecase"
)

func newPromptStack(t *testing.T, repo *MockUserRepo, enhancer *MockEnhancer) (usecase.PromptUseCase, *MockPromptRepo) {
	t.Helper()
	logger := newTestLogger()
	gate := usecase.NewUsageGateUseCase(repo, NewMockTxManager(), logger)
	prompts := NewMockPromptRepo()
	uc, err := usecase.NewPromptUseCase(gate, prompts, enhancer, logger)
	if err != nil {
		t.Fatalf("NewPromptUseCase: %v", err)
	}
	return uc, prompts
}

func TestPromptGenerate(t *testing.T) {
	ctx := context.Background()
	registered := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("free user gets a standard JSON artifact", func(t *testing.T) {
		repo := NewMockUserRepo()
		repo.Add(newFreeUser(t, "u1", registered))
		enhancer := &MockEnhancer{}
		uc, prompts := newPromptStack(t, repo, enhancer)

		rec, res, err := uc.Generate(ctx, "u1", "summarize a contract", registered.Add(time.Minute))
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if rec.Tier != model.TierStandard {
			t.Fatalf("tier = %s, want standard", rec.Tier)
		}
		if enhancer.Calls != 0 {
			t.Fatal("standard tier must not call the enhancer")
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(rec.Artifact), &doc); err != nil {
			t.Fatalf("artifact is not valid JSON: %v", err)
		}
		if doc["task"] != "summarize a contract" {
			t.Fatalf("task = %v, want the input", doc["task"])
		}
		if rec.TokenCount <= 0 {
			t.Fatalf("token count = %d, want > 0", rec.TokenCount)
		}
		if _, err := prompts.FindByID(ctx, nil, rec.ID); err != nil {
			t.Fatalf("record not persisted: %v", err)
		}
		free, _ := model.PlanDetails(model.PlanFree)
		if res.CreditsRemaining != free.CreditGrant-1 {
			t.Fatalf("remaining = %d, want %d", res.CreditsRemaining, free.CreditGrant-1)
		}
	})

	t.Run("premium user gets the enhanced tier", func(t *testing.T) {
		repo := NewMockUserRepo()
		u := newFreeUser(t, "u1", registered)
		u.Plan = model.PlanPremium
		u.Credits = model.CreditsUnlimited
		u.SubscriptionStatus = model.SubscriptionStatusActive
		repo.Add(u)

		enhancer := &MockEnhancer{
			EnhanceFunc: func(_ context.Context, draft string) (string, error) {
				return `{"version":"1","task":"refined"}`, nil
			},
		}
		uc, _ := newPromptStack(t, repo, enhancer)

		rec, _, err := uc.Generate(ctx, "u1", "draft an email", registered.Add(time.Minute))
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if rec.Tier != model.TierEnhanced {
			t.Fatalf("tier = %s, want enhanced", rec.Tier)
		}
		if enhancer.Calls != 1 {
			t.Fatalf("enhancer calls = %d, want 1", enhancer.Calls)
		}
		if !strings.Contains(rec.Artifact, "refined") {
			t.Fatalf("artifact = %q, want enhancer output", rec.Artifact)
		}
	})

	t.Run("enhancer failure falls back to the draft", func(t *testing.T) {
		repo := NewMockUserRepo()
		u := newFreeUser(t, "u1", registered)
		u.Plan = model.PlanPremium
		u.Credits = model.CreditsUnlimited
		u.SubscriptionStatus = model.SubscriptionStatusActive
		repo.Add(u)

		enhancer := &MockEnhancer{
			EnhanceFunc: func(_ context.Context, _ string) (string, error) {
				return "", errors.New("upstream down")
			},
		}
		uc, _ := newPromptStack(t, repo, enhancer)

		rec, _, err := uc.Generate(ctx, "u1", "draft an email", registered.Add(time.Minute))
		if err != nil {
			t.Fatalf("Generate must not fail when enhancement fails: %v", err)
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(rec.Artifact), &doc); err != nil {
			t.Fatalf("fallback artifact invalid: %v", err)
		}
		if doc["task"] != "draft an email" {
			t.Fatalf("task = %v, want draft content", doc["task"])
		}
	})

	t.Run("input validation", func(t *testing.T) {
		repo := NewMockUserRepo()
		repo.Add(newFreeUser(t, "u1", registered))
		uc, _ := newPromptStack(t, repo, &MockEnhancer{})

		if _, _, err := uc.Generate(ctx, "u1", "", registered); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("empty input: err = %v, want ErrInvalidArgument", err)
		}
		long := strings.Repeat("x", 4001)
		if _, _, err := uc.Generate(ctx, "u1", long, registered); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("oversized input: err = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("gate rejection propagates with a snapshot", func(t *testing.T) {
		repo := NewMockUserRepo()
		u := newFreeUser(t, "u1", registered)
		u.Credits = 0
		repo.Add(u)
		uc, prompts := newPromptStack(t, repo, &MockEnhancer{})

		_, res, err := uc.Generate(ctx, "u1", "anything", registered.Add(time.Minute))
		if !errors.Is(err, domain.ErrNoCreditsRemaining) {
			t.Fatalf("err = %v, want ErrNoCreditsRemaining", err)
		}
		if res == nil {
			t.Fatal("rejection should still carry the gate snapshot")
		}
		if n, _ := prompts.DeleteExpired(ctx, repository.NoTX, registered.AddDate(1, 0, 0)); n != 0 {
			t.Fatal("no record should have been stored")
		}
	})
}

func TestPromptGetAndList(t *testing.T) {
	ctx := context.Background()
	registered := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	newRecord := func(t *testing.T, uc usecase.PromptUseCase, userID string, now time.Time) *model.PromptRecord {
		t.Helper()
		rec, _, err := uc.Generate(ctx, userID, "some task", now)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		return rec
	}

	t.Run("owner reads back within retention", func(t *testing.T) {
		repo := NewMockUserRepo()
		repo.Add(newFreeUser(t, "u1", registered))
		uc, _ := newPromptStack(t, repo, &MockEnhancer{})
		rec := newRecord(t, uc, "u1", registered.Add(time.Minute))

		got, err := uc.Get(ctx, "u1", rec.ID, registered.Add(time.Hour))
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ID != rec.ID {
			t.Fatalf("id = %s, want %s", got.ID, rec.ID)
		}
	})

	t.Run("other users and expired records read as not found", func(t *testing.T) {
		repo := NewMockUserRepo()
		repo.Add(newFreeUser(t, "u1", registered))
		uc, _ := newPromptStack(t, repo, &MockEnhancer{})
		rec := newRecord(t, uc, "u1", registered.Add(time.Minute))

		if _, err := uc.Get(ctx, "u2", rec.ID, registered.Add(time.Hour)); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("foreign read: err = %v, want ErrNotFound", err)
		}
		pastRetention := registered.Add(model.PromptRetention + 2*time.Hour)
		if _, err := uc.Get(ctx, "u1", rec.ID, pastRetention); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expired read: err = %v, want ErrNotFound", err)
		}
	})
}
