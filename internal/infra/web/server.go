package web

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/usecase"
)

// Server is the operator-facing admin API. It sits on its own port behind a
// static bearer key, separate from the public surface.
type Server struct {
	statsUC usecase.StatsUseCase
	userUC  usecase.UserUseCase
	apiKey  string
	log     *zerolog.Logger
}

func NewServer(statsUC usecase.StatsUseCase, userUC usecase.UserUseCase, apiKey string, logger *zerolog.Logger) *Server {
	return &Server{statsUC: statsUC, userUC: userUC, apiKey: apiKey, log: logger}
}

// RegisterRoutes sets up the routing for the admin API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/admin/v1/stats", s.authMiddleware(statsHandler(s.statsUC)))

	usersRouter := s.authMiddleware(s.usersRouter())
	mux.Handle("/admin/v1/users", usersRouter)
	mux.Handle("/admin/v1/users/", usersRouter)

	mux.Handle("/admin/v1/plans", s.authMiddleware(plansHandler()))
}

// authMiddleware provides simple Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			s.log.Error().Msg("admin API key is not configured")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			http.Error(w, "Unauthorized: Malformed token", http.StatusUnauthorized)
			return
		}

		if tokenParts[1] != s.apiKey {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) usersRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/admin/v1/users")
		path = strings.TrimSuffix(path, "/")

		if path == "" {
			usersListHandler(s.userUC)(w, r)
		} else {
			userGetHandler(s.userUC)(w, r)
		}
	})
}
