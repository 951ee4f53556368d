package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/domain/ports/repository"
	"jsonprompt-saas/internal/infra/logging"
)

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

// UserUseCase exposes user-related operations used by API/admin flows.
// Credential verification lives with the auth provider, not here.
type UserUseCase interface {
	RegisterOrFetch(ctx context.Context, email string, now time.Time) (*model.User, bool, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, offset, limit int) ([]*model.User, error)
	Count(ctx context.Context) (int, error)
}

type userUC struct {
	users repository.UserRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *userUC {
	return &userUC{users: users, tm: tm, log: logger}
}

// RegisterOrFetch creates a free-plan user for the email, or returns the
// existing one. The find and the save run as one transaction so concurrent
// registrations of the same email collapse to a single row.
func (u *userUC) RegisterOrFetch(ctx context.Context, email string, now time.Time) (*model.User, bool, error) {
	defer logging.TraceDuration(u.log, "UserUC.RegisterOrFetch")()

	var usr *model.User
	var created bool
	err := withSerializableRetry(ctx, u.tm, func(ctx context.Context, tx repository.Tx) error {
		usr, created = nil, false
		existing, err := u.users.FindByEmail(ctx, tx, email)
		if err == nil {
			usr = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		nu, err := model.NewUser("", email, now)
		if err != nil {
			return err
		}
		if err := u.users.Save(ctx, tx, nu); err != nil {
			return err
		}
		usr, created = nu, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return usr, created, nil
}

func (u *userUC) GetByID(ctx context.Context, id string) (*model.User, error) {
	return u.users.FindByID(ctx, repository.NoTX, id)
}

func (u *userUC) List(ctx context.Context, offset, limit int) ([]*model.User, error) {
	return u.users.List(ctx, repository.NoTX, offset, limit)
}

func (u *userUC) Count(ctx context.Context) (int, error) {
	return u.users.CountUsers(ctx, repository.NoTX)
}
