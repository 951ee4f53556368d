package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/infra/logging"
	"jsonprompt-saas/internal/infra/metrics"
	"jsonprompt-saas/internal/infra/payment"
	"jsonprompt-saas/internal/usecase"
)

const maxWebhookBody = 1 << 20

// RateLimiter is the slice of the redis limiter the server needs.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Server is the public HTTP surface: registration, prompt generation,
// usage, and the provider webhook sink.
type Server struct {
	users       usecase.UserUseCase
	prompts     usecase.PromptUseCase
	gate        usecase.UsageGateUseCase
	reconciler  usecase.ReconcilerUseCase
	normalizers *payment.Registry
	auth        *AuthManager
	limiter     RateLimiter
	ratePerMin  int
	log         *zerolog.Logger
}

func NewServer(
	users usecase.UserUseCase,
	prompts usecase.PromptUseCase,
	gate usecase.UsageGateUseCase,
	reconciler usecase.ReconcilerUseCase,
	normalizers *payment.Registry,
	auth *AuthManager,
	limiter RateLimiter,
	ratePerMin int,
	logger *zerolog.Logger,
) *Server {
	if ratePerMin <= 0 {
		ratePerMin = 30
	}
	return &Server{
		users:       users,
		prompts:     prompts,
		gate:        gate,
		reconciler:  reconciler,
		normalizers: normalizers,
		auth:        auth,
		limiter:     limiter,
		ratePerMin:  ratePerMin,
		log:         logger,
	}
}

// Handler builds the full route tree with the ambient middleware applied.
func (s *Server) Handler(requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(
		TraceID(),
		RequestLog(s.log),
		Recover(s.log),
		Timeout(requestTimeout),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", s.handleRegister)
		r.Post("/webhooks/{provider}", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireUser)
			r.Post("/prompts", s.handleGenerate)
			r.Get("/prompts", s.handleListPrompts)
			r.Get("/prompts/{id}", s.handleGetPrompt)
			r.Get("/usage", s.handleUsage)
		})
	})
	return r
}

// ---- handlers ----

type registerRequest struct {
	Email string `json:"email"`
}

type registerResponse struct {
	User  userView `json:"user"`
	Token string   `json:"token"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	now := time.Now().UTC()
	usr, created, err := s.users.RegisterOrFetch(r.Context(), req.Email, now)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	token, err := s.auth.Mint(usr.ID, now)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, registerResponse{User: viewOf(usr), Token: token})
}

type generateRequest struct {
	Input string `json:"input"`
}

type generateResponse struct {
	ID               string          `json:"id"`
	Artifact         json.RawMessage `json:"artifact"`
	Tier             string          `json:"tier"`
	TokenCount       int             `json:"token_count"`
	ExpiresAt        time.Time       `json:"expires_at"`
	CreditsRemaining int             `json:"credits_remaining"`
	Unlimited        bool            `json:"unlimited"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())

	allowed, err := s.limiter.Allow(r.Context(), rateLimitKey(userID), s.ratePerMin, time.Minute)
	if err != nil {
		// Limiter outage must not take generation down with it.
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
	} else if !allowed {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	start := time.Now()
	rec, res, err := s.prompts.Generate(r.Context(), userID, req.Input, time.Now().UTC())
	if err != nil {
		s.recordGateOutcome(res, err)
		if res != nil && (errors.Is(err, domain.ErrNoCreditsRemaining) || errors.Is(err, domain.ErrNotActive)) {
			writeGateRejection(w, res, err)
			return
		}
		s.writeDomainError(w, r, err)
		return
	}
	metrics.IncGateDecision(planLabel(res), "allowed")
	metrics.ObserveGeneration(string(rec.Tier), rec.TokenCount,
		int(time.Since(start).Milliseconds()), rec.Tier == model.TierEnhanced)

	writeJSON(w, http.StatusCreated, generateResponse{
		ID:               rec.ID,
		Artifact:         json.RawMessage(rec.Artifact),
		Tier:             string(rec.Tier),
		TokenCount:       rec.TokenCount,
		ExpiresAt:        rec.ExpiresAt,
		CreditsRemaining: res.CreditsRemaining,
		Unlimited:        res.Unlimited,
	})
}

func (s *Server) recordGateOutcome(res *usecase.GateResult, err error) {
	switch {
	case errors.Is(err, domain.ErrNoCreditsRemaining):
		metrics.IncGateDecision(planLabel(res), "no_credits")
	case errors.Is(err, domain.ErrNotActive):
		metrics.IncGateDecision(planLabel(res), "not_active")
	case errors.Is(err, domain.ErrInvalidArgument):
		// not a gate decision
	default:
		metrics.IncGateDecision(planLabel(res), "error")
	}
}

// writeGateRejection answers a gate refusal with 402 and the snapshot the
// gate surfaces, so clients can show remaining/limit info next to the
// upgrade prompt.
func writeGateRejection(w http.ResponseWriter, res *usecase.GateResult, err error) {
	msg := "no credits remaining"
	if errors.Is(err, domain.ErrNotActive) {
		msg = "plan is not active"
	}
	writeJSON(w, http.StatusPaymentRequired, map[string]any{
		"error":             msg,
		"credits_remaining": res.CreditsRemaining,
		"daily_limit":       res.DailyLimit,
		"monthly_limit":     res.MonthlyLimit,
	})
}

func planLabel(res *usecase.GateResult) string {
	if res == nil {
		return "unknown"
	}
	if res.Unlimited {
		return string(model.PlanPremium)
	}
	if res.MonthlyLimit > 0 {
		return string(model.PlanStarter)
	}
	return string(model.PlanFree)
}

type promptView struct {
	ID         string          `json:"id"`
	Input      string          `json:"input"`
	Artifact   json.RawMessage `json:"artifact"`
	Tier       string          `json:"tier"`
	TokenCount int             `json:"token_count"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	rec, err := s.prompts.Get(r.Context(), UserID(r.Context()), chi.URLParam(r, "id"), time.Now().UTC())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, promptViewOf(rec))
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := s.prompts.ListRecent(r.Context(), UserID(r.Context()), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	views := make([]promptView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, promptViewOf(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": views})
}

type usageResponse struct {
	Plan             string `json:"plan"`
	Status           string `json:"status"`
	CreditsRemaining int    `json:"credits_remaining"`
	DailyLimit       int    `json:"daily_limit,omitempty"`
	MonthlyLimit     int    `json:"monthly_limit,omitempty"`
	Unlimited        bool   `json:"unlimited"`
	TotalPromptsUsed int    `json:"total_prompts_used"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	now := time.Now().UTC()

	usr, err := s.users.GetByID(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	snap, err := s.gate.Snapshot(r.Context(), userID, now)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usageResponse{
		Plan:             string(usr.Plan),
		Status:           string(usr.SubscriptionStatus),
		CreditsRemaining: snap.CreditsRemaining,
		DailyLimit:       snap.DailyLimit,
		MonthlyLimit:     snap.MonthlyLimit,
		Unlimited:        snap.Unlimited,
		TotalPromptsUsed: usr.TotalPromptsUsed,
	})
}

// handleWebhook is the provider-facing sink. Acknowledgement policy:
// duplicates and orphans get 200 so providers stop redelivering; malformed
// or unverifiable payloads get 400; transient conflicts get 503 so the
// provider retries.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	l := logging.With(r.Context(), s.log)

	normalizer, ok := s.normalizers.ForProvider(providerName)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	ev, err := normalizer.Normalize(body, r.Header)
	if err != nil {
		metrics.IncWebhookEvent(providerName, "unknown", "malformed")
		l.Warn().Err(err).Str("provider", providerName).Msg("webhook rejected at boundary")
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if ev == nil {
		// Authentic delivery for an event type we do not track.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	err = s.reconciler.Apply(r.Context(), ev)
	evType := string(ev.Type)
	switch {
	case err == nil:
		metrics.IncWebhookEvent(providerName, evType, "applied")
		writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
	case errors.Is(err, domain.ErrDuplicateEvent):
		metrics.IncWebhookEvent(providerName, evType, "duplicate")
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
	case errors.Is(err, domain.ErrOrphanEvent):
		metrics.IncWebhookEvent(providerName, evType, "orphan")
		l.Warn().Str("provider", providerName).Str("event_id", ev.EventID).
			Str("ref", ev.CorrelationRef).Msg("orphan event acknowledged")
		writeJSON(w, http.StatusOK, map[string]string{"status": "orphan"})
	case errors.Is(err, domain.ErrMalformedEvent):
		metrics.IncWebhookEvent(providerName, evType, "malformed")
		writeError(w, http.StatusBadRequest, "invalid payload")
	case errors.Is(err, domain.ErrRetryLater):
		metrics.IncWebhookEvent(providerName, evType, "retry")
		writeError(w, http.StatusServiceUnavailable, "retry later")
	default:
		metrics.IncWebhookEvent(providerName, evType, "error")
		l.Error().Err(err).Str("provider", providerName).Str("event_id", ev.EventID).
			Msg("reconcile failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ---- helpers ----

type userView struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Plan    string `json:"plan"`
	Credits int    `json:"credits"`
}

func viewOf(u *model.User) userView {
	return userView{ID: u.ID, Email: u.Email, Plan: string(u.Plan), Credits: u.Credits}
}

func promptViewOf(rec *model.PromptRecord) promptView {
	return promptView{
		ID:         rec.ID,
		Input:      rec.Input,
		Artifact:   json.RawMessage(rec.Artifact),
		Tier:       string(rec.Tier),
		TokenCount: rec.TokenCount,
		CreatedAt:  rec.CreatedAt,
		ExpiresAt:  rec.ExpiresAt,
	}
}

func rateLimitKey(userID string) string {
	return "rate_limit:" + userID + ":generate"
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	l := logging.With(r.Context(), s.log)
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrMalformedEvent):
		writeError(w, http.StatusBadRequest, "invalid request")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrNotActive):
		writeError(w, http.StatusPaymentRequired, "plan is not active")
	case errors.Is(err, domain.ErrNoCreditsRemaining):
		writeError(w, http.StatusPaymentRequired, "no credits remaining")
	case errors.Is(err, domain.ErrRetryLater):
		writeError(w, http.StatusServiceUnavailable, "retry later")
	default:
		l.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
