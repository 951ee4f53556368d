package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/domain/ports/repository"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// StatsUseCase aggregates read-only numbers for the admin dashboard.
type StatsUseCase interface {
	Totals(ctx context.Context) (totalUsers int, byPlan map[string]int, err error)
}

type statsUC struct {
	users repository.UserRepository
	log   *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{users: users, log: logger}
}

func (s *statsUC) Totals(ctx context.Context) (int, map[string]int, error) {
	total, err := s.users.CountUsers(ctx, repository.NoTX)
	if err != nil {
		return 0, nil, err
	}
	byPlan, err := s.users.CountByPlan(ctx, repository.NoTX)
	if err != nil {
		return 0, nil, err
	}
	return total, byPlan, nil
}
