package repository

import (
	"context"
	"time"

	"jsonprompt-saas/internal/domain/model"
)

// PromptRepository stores generation records. Rows carry an expiry; the
// maintenance sweep deletes what has run out.
type PromptRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PromptRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PromptRecord, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.PromptRecord, error)
	DeleteExpired(ctx context.Context, tx Tx, now time.Time) (int64, error)
}
