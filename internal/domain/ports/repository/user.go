package repository

import (
	"context"
	"time"

	"jsonprompt-saas/internal/domain/model"
)

// UserRepository is the port over the user document store. A single-row
// update is atomic; anything spanning a read and a write goes through the
// TransactionManager.
type UserRepository interface {
	Save(ctx context.Context, tx Tx, u *model.User) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.User, error)

	// Webhook correlation lookups.
	FindByExternalRef(ctx context.Context, tx Tx, provider, ref string) (*model.User, error)
	FindByPendingOrder(ctx context.Context, tx Tx, ref string) (*model.User, error)

	// MarkEventProcessed records an external event id against a user. It
	// returns false when the id was already present; this is the idempotency CAS
	// predicate. Must run on the same tx as the event's side effects.
	MarkEventProcessed(ctx context.Context, tx Tx, userID, eventID string) (bool, error)

	// Admin / maintenance reads.
	List(ctx context.Context, tx Tx, offset, limit int) ([]*model.User, error)
	CountUsers(ctx context.Context, tx Tx) (int, error)
	CountByPlan(ctx context.Context, tx Tx) (map[string]int, error)
	ListResetDue(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.User, error)
}
