package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/usecase"
)

// statsHandler serves aggregate platform statistics.
func statsHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		totalUsers, byPlan, err := statsUC.Totals(r.Context())
		if err != nil {
			http.Error(w, "Failed to get totals", http.StatusInternalServerError)
			return
		}

		response := struct {
			TotalUsers  int            `json:"total_users"`
			UsersByPlan map[string]int `json:"users_by_plan"`
		}{
			TotalUsers:  totalUsers,
			UsersByPlan: byPlan,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

type adminUserView struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Plan               string     `json:"plan"`
	Credits            int        `json:"credits"`
	DailyPromptsUsed   int        `json:"daily_prompts_used"`
	MonthlyPromptsUsed int        `json:"monthly_prompts_used"`
	TotalPromptsUsed   int        `json:"total_prompts_used"`
	SubscriptionStatus string     `json:"subscription_status"`
	ExternalProvider   string     `json:"external_provider,omitempty"`
	ExternalRef        string     `json:"external_ref,omitempty"`
	PendingOrderRef    string     `json:"pending_order_ref,omitempty"`
	PlanStartDate      *time.Time `json:"plan_start_date,omitempty"`
	PlanEndDate        *time.Time `json:"plan_end_date,omitempty"`
	RegisteredAt       time.Time  `json:"registered_at"`
	LastActiveAt       time.Time  `json:"last_active_at"`
}

func adminViewOf(u *model.User) adminUserView {
	return adminUserView{
		ID:                 u.ID,
		Email:              u.Email,
		Plan:               string(u.Plan),
		Credits:            u.Credits,
		DailyPromptsUsed:   u.DailyPromptsUsed,
		MonthlyPromptsUsed: u.MonthlyPromptsUsed,
		TotalPromptsUsed:   u.TotalPromptsUsed,
		SubscriptionStatus: string(u.SubscriptionStatus),
		ExternalProvider:   u.ExternalProvider,
		ExternalRef:        u.ExternalRef,
		PendingOrderRef:    u.PendingOrderRef,
		PlanStartDate:      u.PlanStartDate,
		PlanEndDate:        u.PlanEndDate,
		RegisteredAt:       u.RegisteredAt,
		LastActiveAt:       u.LastActiveAt,
	}
}

// usersListHandler returns a paginated list of users.
// It accepts 'offset' and 'limit' query parameters.
func usersListHandler(userUC usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		if offset < 0 {
			offset = 0
		}

		users, err := userUC.List(r.Context(), offset, limit)
		if err != nil {
			http.Error(w, "Failed to list users", http.StatusInternalServerError)
			return
		}
		total, err := userUC.Count(r.Context())
		if err != nil {
			http.Error(w, "Failed to count users", http.StatusInternalServerError)
			return
		}

		views := make([]adminUserView, 0, len(users))
		for _, u := range users {
			views = append(views, adminViewOf(u))
		}

		response := struct {
			Users  []adminUserView `json:"users"`
			Total  int             `json:"total"`
			Offset int             `json:"offset"`
			Limit  int             `json:"limit"`
		}{
			Users:  views,
			Total:  total,
			Offset: offset,
			Limit:  limit,
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	}
}

// userGetHandler returns a single user by id, taken from the path suffix.
func userGetHandler(userUC usecase.UserUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/admin/v1/users/")
		if id == "" {
			http.Error(w, "Missing user id", http.StatusBadRequest)
			return
		}

		usr, err := userUC.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				http.Error(w, "User not found", http.StatusNotFound)
				return
			}
			http.Error(w, "Failed to get user", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(adminViewOf(usr))
	}
}

// plansHandler returns the static plan catalog.
func plansHandler() http.HandlerFunc {
	type planView struct {
		Name         string `json:"name"`
		DailyLimit   int    `json:"daily_limit,omitempty"`
		MonthlyLimit int    `json:"monthly_limit,omitempty"`
		CreditGrant  int    `json:"credit_grant,omitempty"`
		DurationDays int    `json:"duration_days,omitempty"`
		Unlimited    bool   `json:"unlimited"`
		PriceCents   int64  `json:"price_cents"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		plans := model.AllPlans()
		views := make([]planView, 0, len(plans))
		for _, p := range plans {
			views = append(views, planView{
				Name:         string(p.Name),
				DailyLimit:   p.DailyLimit,
				MonthlyLimit: p.MonthlyLimit,
				CreditGrant:  p.CreditGrant,
				DurationDays: p.DurationDays,
				Unlimited:    p.Unlimited,
				PriceCents:   p.PriceCents,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(struct {
			Plans []planView `json:"plans"`
		}{Plans: views})
	}
}
