package model

import (
	"strings"
	"time"

	"jsonprompt-saas/internal/domain"

	"github.com/google/uuid"
)

// CreditsUnlimited is the sentinel balance for premium users. It is never
// decremented; Consume only moves the usage counters.
const CreditsUnlimited = -1

type SubscriptionStatus string

const (
	SubscriptionStatusNone     SubscriptionStatus = "none"
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// User is the unit of mutual exclusion for every core operation: the usage
// gate and the reconciler both do read-modify-write against a single row.
type User struct {
	ID    string
	Email string

	Plan               PlanName
	Credits            int
	DailyPromptsUsed   int
	MonthlyPromptsUsed int
	TotalPromptsUsed   int

	LastFreeReset    time.Time
	LastMonthlyReset time.Time

	// One-time purchase model: validity window.
	PlanStartDate *time.Time
	PlanEndDate   *time.Time

	// Recurring model: provider subscription state.
	SubscriptionStatus SubscriptionStatus
	ExternalProvider   string
	ExternalRef        string

	// In-flight one-time order, cleared on terminal webhook outcome.
	PendingOrderRef string

	RegisteredAt time.Time
	LastActiveAt time.Time
}

func NewUser(id, email string, now time.Time) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidArgument
	}
	free, err := PlanDetails(PlanFree)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:                 id,
		Email:              email,
		Plan:               PlanFree,
		Credits:            free.CreditGrant,
		LastFreeReset:      now,
		LastMonthlyReset:   now,
		SubscriptionStatus: SubscriptionStatusNone,
		RegisteredAt:       now,
		LastActiveAt:       now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

func (u *User) Touch(now time.Time) { u.LastActiveAt = now }

// Unlimited reports whether the user's plan never decrements credits.
func (u *User) Unlimited() bool { return u.Plan == PlanPremium }

// ResetDailyIfDue applies the lazy daily reset for free users. Idempotent
// within a calendar day; LastFreeReset never moves backwards.
func (u *User) ResetDailyIfDue(now time.Time) bool {
	if u.Plan != PlanFree || now.Before(u.LastFreeReset) {
		return false
	}
	ly, lm, ld := u.LastFreeReset.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	if ly == ny && lm == nm && ld == nd {
		return false
	}
	plan, err := PlanDetails(u.Plan)
	if err != nil {
		return false
	}
	u.Credits = plan.CreditGrant
	u.DailyPromptsUsed = 0
	u.LastFreeReset = now
	return true
}

// ResetMonthlyIfDue applies the lazy monthly reset for starter users.
func (u *User) ResetMonthlyIfDue(now time.Time) bool {
	if u.Plan != PlanStarter || now.Before(u.LastMonthlyReset) {
		return false
	}
	ly, lm, _ := u.LastMonthlyReset.UTC().Date()
	ny, nm, _ := now.UTC().Date()
	if ly == ny && lm == nm {
		return false
	}
	plan, err := PlanDetails(u.Plan)
	if err != nil {
		return false
	}
	u.Credits = plan.CreditGrant
	u.MonthlyPromptsUsed = 0
	u.LastMonthlyReset = now
	return true
}

// CanConsume reports whether one prompt generation is allowed right now.
// Callers must apply the lazy resets first; this does not look at the clock.
func (u *User) CanConsume() bool {
	if u.Unlimited() {
		return true
	}
	return u.Credits > 0
}

// Consume spends one credit (or none, for unlimited plans) and moves the
// usage counters. Returns the remaining balance.
func (u *User) Consume() (int, error) {
	if u.Unlimited() {
		u.DailyPromptsUsed++
		u.MonthlyPromptsUsed++
		u.TotalPromptsUsed++
		return CreditsUnlimited, nil
	}
	if u.Credits <= 0 {
		return 0, domain.ErrNoCreditsRemaining
	}
	u.Credits--
	u.DailyPromptsUsed++
	u.MonthlyPromptsUsed++
	u.TotalPromptsUsed++
	return u.Credits, nil
}

// PlanLapsed reports whether a one-time purchase window has run out. A user
// on the recurring model with an active subscription never lapses here.
func (u *User) PlanLapsed(now time.Time) bool {
	if u.Plan == PlanFree {
		return false
	}
	if u.SubscriptionStatus == SubscriptionStatusActive || u.SubscriptionStatus == SubscriptionStatusPastDue {
		return false
	}
	return u.PlanEndDate == nil || !u.PlanEndDate.After(now)
}
