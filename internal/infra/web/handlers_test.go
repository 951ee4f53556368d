//go:build !integration

package web_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/infra/web"
	"jsonprompt-saas/internal/usecase"
)

const adminKey = "admin-test-key"

type stubStatsUC struct {
	TotalsFunc func(ctx context.Context) (int, map[string]int, error)
}

var _ usecase.StatsUseCase = (*stubStatsUC)(nil)

func (s *stubStatsUC) Totals(ctx context.Context) (int, map[string]int, error) {
	return s.TotalsFunc(ctx)
}

type stubUserUC struct {
	users map[string]*model.User
}

var _ usecase.UserUseCase = (*stubUserUC)(nil)

func (s *stubUserUC) RegisterOrFetch(ctx context.Context, email string, now time.Time) (*model.User, bool, error) {
	return nil, false, domain.ErrInvalidArgument
}
func (s *stubUserUC) GetByID(ctx context.Context, id string) (*model.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}
func (s *stubUserUC) List(ctx context.Context, offset, limit int) ([]*model.User, error) {
	out := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}
func (s *stubUserUC) Count(ctx context.Context) (int, error) { return len(s.users), nil }

func newAdminMux(t *testing.T) *http.ServeMux {
	t.Helper()
	logger := zerolog.New(io.Discard)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	usr, err := model.NewUser("user-1", "a@b.com", now)
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}

	stats := &stubStatsUC{
		TotalsFunc: func(ctx context.Context) (int, map[string]int, error) {
			return 1, map[string]int{"free": 1}, nil
		},
	}
	users := &stubUserUC{users: map[string]*model.User{"user-1": usr}}

	srv := web.NewServer(stats, users, adminKey, &logger)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	return mux
}

func get(t *testing.T, mux *http.ServeMux, path, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAdminAuth(t *testing.T) {
	mux := newAdminMux(t)

	t.Run("missing token", func(t *testing.T) {
		if rec := get(t, mux, "/admin/v1/stats", ""); rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("wrong token", func(t *testing.T) {
		if rec := get(t, mux, "/admin/v1/stats", "wrong"); rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", rec.Code)
		}
	})
}

func TestAdminStats(t *testing.T) {
	mux := newAdminMux(t)
	rec := get(t, mux, "/admin/v1/stats", adminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		TotalUsers  int            `json:"total_users"`
		UsersByPlan map[string]int `json:"users_by_plan"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body: %v", err)
	}
	if resp.TotalUsers != 1 || resp.UsersByPlan["free"] != 1 {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestAdminUsers(t *testing.T) {
	mux := newAdminMux(t)

	t.Run("list", func(t *testing.T) {
		rec := get(t, mux, "/admin/v1/users", adminKey)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp struct {
			Users []json.RawMessage `json:"users"`
			Total int               `json:"total"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("body: %v", err)
		}
		if resp.Total != 1 || len(resp.Users) != 1 {
			t.Fatalf("resp = %+v", resp)
		}
	})

	t.Run("get one", func(t *testing.T) {
		rec := get(t, mux, "/admin/v1/users/user-1", adminKey)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := get(t, mux, "/admin/v1/users/nope", adminKey)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestAdminPlans(t *testing.T) {
	mux := newAdminMux(t)
	rec := get(t, mux, "/admin/v1/plans", adminKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Plans []struct {
			Name      string `json:"name"`
			Unlimited bool   `json:"unlimited"`
		} `json:"plans"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(resp.Plans) != 3 {
		t.Fatalf("plans = %d, want 3", len(resp.Plans))
	}
}
