package model

import (
	"jsonprompt-saas/internal/domain"
)

type PlanName string

const (
	PlanFree    PlanName = "free"
	PlanStarter PlanName = "starter"
	PlanPremium PlanName = "premium"
)

type ResetCadence string

const (
	ResetDaily   ResetCadence = "daily"
	ResetMonthly ResetCadence = "monthly"
	ResetNone    ResetCadence = "none"
)

// Plan describes the entitlements of a plan tier. The catalog is static:
// plans are product configuration, not user data.
type Plan struct {
	Name         PlanName
	DailyLimit   int
	MonthlyLimit int
	CreditGrant  int
	DurationDays int // one-time purchase validity window; 0 = no window
	Unlimited    bool
	Cadence      ResetCadence
	PriceCents   int64
}

var catalog = map[PlanName]Plan{
	PlanFree: {
		Name:        PlanFree,
		DailyLimit:  3,
		CreditGrant: 3,
		Cadence:     ResetDaily,
	},
	PlanStarter: {
		Name:         PlanStarter,
		MonthlyLimit: 30,
		CreditGrant:  30,
		DurationDays: 30,
		Cadence:      ResetMonthly,
		PriceCents:   900,
	},
	PlanPremium: {
		Name:       PlanPremium,
		Unlimited:  true,
		Cadence:    ResetNone,
		PriceCents: 2900,
	},
}

// PlanDetails resolves a plan name against the catalog.
func PlanDetails(name PlanName) (Plan, error) {
	p, ok := catalog[name]
	if !ok {
		return Plan{}, domain.ErrUnknownPlan
	}
	return p, nil
}

// AllPlans returns the catalog entries in a stable order.
func AllPlans() []Plan {
	return []Plan{catalog[PlanFree], catalog[PlanStarter], catalog[PlanPremium]}
}
