//go:build !integration

package model_test

import (
	"errors"
	"testing"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
)

func TestPlanDetails(t *testing.T) {
	t.Run("unknown plan", func(t *testing.T) {
		if _, err := model.PlanDetails("platinum"); !errors.Is(err, domain.ErrUnknownPlan) {
			t.Fatalf("err = %v, want ErrUnknownPlan", err)
		}
	})

	t.Run("catalog shape", func(t *testing.T) {
		free, err := model.PlanDetails(model.PlanFree)
		if err != nil {
			t.Fatalf("free: %v", err)
		}
		if free.Unlimited || free.DailyLimit <= 0 || free.CreditGrant != free.DailyLimit {
			t.Fatalf("free plan misconfigured: %+v", free)
		}

		starter, err := model.PlanDetails(model.PlanStarter)
		if err != nil {
			t.Fatalf("starter: %v", err)
		}
		if starter.Unlimited || starter.MonthlyLimit <= 0 || starter.DurationDays <= 0 {
			t.Fatalf("starter plan misconfigured: %+v", starter)
		}

		premium, err := model.PlanDetails(model.PlanPremium)
		if err != nil {
			t.Fatalf("premium: %v", err)
		}
		if !premium.Unlimited {
			t.Fatalf("premium plan misconfigured: %+v", premium)
		}
	})
}
