package postgres

import (
	"context"

	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/domain/ports/repository"
	red "jsonprompt-saas/internal/infra/redis"
)

var _ repository.PromptRepository = (*PromptRepo)(nil)

// PromptRepo persists generation records in Postgres and keeps the artifact
// in a Redis cache whose TTL matches the retention window, so reads within
// the window rarely touch the database.
type PromptRepo struct {
	pool  *pgxpool.Pool
	cache *red.ArtifactCache
	log   *zerolog.Logger
}

func NewPromptRepo(pool *pgxpool.Pool, cache *red.ArtifactCache, logger *zerolog.Logger) *PromptRepo {
	return &PromptRepo{pool: pool, cache: cache, log: logger}
}

func (r *PromptRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromptRecord) error {
	const q = `
INSERT INTO prompts (id, user_id, input, artifact, tier, token_count, created_at, expires_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);
`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, p.ID, p.UserID, p.Input, p.Artifact, p.Tier, p.TokenCount, p.CreatedAt, p.ExpiresAt); err != nil {
		return err
	}
	if r.cache != nil {
		// Cache write is best-effort; the row is the source of truth.
		if err := r.cache.Put(ctx, p.ID, p.Artifact, time.Until(p.ExpiresAt)); err != nil {
			r.log.Debug().Err(err).Str("prompt_id", p.ID).Msg("artifact cache put failed")
		}
	}
	return nil
}

func (r *PromptRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromptRecord, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	row := ex.QueryRow(ctx,
		`SELECT id, user_id, input, artifact, tier, token_count, created_at, expires_at FROM prompts WHERE id=$1;`, id)
	rec, err := scanPrompt(row)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if artifact, cerr := r.cache.Get(ctx, id); cerr == nil && artifact != "" {
			rec.Artifact = artifact
		}
	}
	return rec, nil
}

func (r *PromptRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.PromptRecord, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `
SELECT id, user_id, input, artifact, tier, token_count, created_at, expires_at
  FROM prompts WHERE user_id=$1 AND expires_at > now()
 ORDER BY id DESC LIMIT $2;`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.PromptRecord
	for rows.Next() {
		rec, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *PromptRepo) DeleteExpired(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	tag, err := ex.Exec(ctx, `DELETE FROM prompts WHERE expires_at <= $1;`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanPrompt(row pgx.Row) (*model.PromptRecord, error) {
	var p model.PromptRecord
	if err := row.Scan(&p.ID, &p.UserID, &p.Input, &p.Artifact, &p.Tier, &p.TokenCount, &p.CreatedAt, &p.ExpiresAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
