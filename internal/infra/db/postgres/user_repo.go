package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/model"
	"jsonprompt-saas/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*UserRepo)(nil)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `
  id, email, plan, credits, daily_prompts_used, monthly_prompts_used, total_prompts_used,
  last_free_reset, last_monthly_reset, plan_start_date, plan_end_date,
  subscription_status, external_provider, external_ref, pending_order_ref,
  registered_at, last_active_at`

func (r *UserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (
  id, email, plan, credits, daily_prompts_used, monthly_prompts_used, total_prompts_used,
  last_free_reset, last_monthly_reset, plan_start_date, plan_end_date,
  subscription_status, external_provider, external_ref, pending_order_ref,
  registered_at, last_active_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT (id) DO UPDATE SET
  email=$2, plan=$3, credits=$4, daily_prompts_used=$5, monthly_prompts_used=$6,
  total_prompts_used=$7, last_free_reset=$8, last_monthly_reset=$9,
  plan_start_date=$10, plan_end_date=$11, subscription_status=$12,
  external_provider=$13, external_ref=$14, pending_order_ref=$15, last_active_at=$17;
`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	_, err = ex.Exec(ctx, q,
		u.ID, u.Email, u.Plan, u.Credits, u.DailyPromptsUsed, u.MonthlyPromptsUsed, u.TotalPromptsUsed,
		u.LastFreeReset, u.LastMonthlyReset, u.PlanStartDate, u.PlanEndDate,
		u.SubscriptionStatus, u.ExternalProvider, u.ExternalRef, u.PendingOrderRef,
		u.RegisteredAt, u.LastActiveAt)
	return err
}

func (r *UserRepo) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID, &u.Email, &u.Plan, &u.Credits, &u.DailyPromptsUsed, &u.MonthlyPromptsUsed, &u.TotalPromptsUsed,
		&u.LastFreeReset, &u.LastMonthlyReset, &u.PlanStartDate, &u.PlanEndDate,
		&u.SubscriptionStatus, &u.ExternalProvider, &u.ExternalRef, &u.PendingOrderRef,
		&u.RegisteredAt, &u.LastActiveAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return r.scanUser(ex.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE id=$1;`, id))
}

func (r *UserRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return r.scanUser(ex.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE email=lower($1);`, email))
}

func (r *UserRepo) FindByExternalRef(ctx context.Context, tx repository.Tx, provider, ref string) (*model.User, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return r.scanUser(ex.QueryRow(ctx,
		`SELECT`+userColumns+` FROM users WHERE external_provider=$1 AND external_ref=$2;`, provider, ref))
}

func (r *UserRepo) FindByPendingOrder(ctx context.Context, tx repository.Tx, ref string) (*model.User, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return r.scanUser(ex.QueryRow(ctx, `SELECT`+userColumns+` FROM users WHERE pending_order_ref=$1;`, ref))
}

// MarkEventProcessed inserts the event id for the user. The affected-row
// count is the idempotency CAS: 0 rows means the id was already recorded.
func (r *UserRepo) MarkEventProcessed(ctx context.Context, tx repository.Tx, userID, eventID string) (bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	tag, err := ex.Exec(ctx,
		`INSERT INTO processed_events (user_id, event_id, processed_at) VALUES ($1,$2,now())
		 ON CONFLICT (user_id, event_id) DO NOTHING;`, userID, eventID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *UserRepo) List(ctx context.Context, tx repository.Tx, offset, limit int) ([]*model.User, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx,
		`SELECT`+userColumns+` FROM users ORDER BY registered_at DESC OFFSET $1 LIMIT $2;`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *UserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM users;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *UserRepo) CountByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT plan, COUNT(*) FROM users GROUP BY plan;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var plan string
		var n int
		if err := rows.Scan(&plan, &n); err != nil {
			return nil, err
		}
		out[plan] = n
	}
	return out, rows.Err()
}

// ListResetDue finds users whose lazy reset is overdue, for the advisory
// maintenance sweep. Gating never depends on this query.
func (r *UserRepo) ListResetDue(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.User, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `
SELECT`+userColumns+`
  FROM users
 WHERE (plan = 'free'    AND (last_free_reset AT TIME ZONE 'UTC')::date    < ($1::timestamptz AT TIME ZONE 'UTC')::date)
    OR (plan = 'starter' AND date_trunc('month', last_monthly_reset AT TIME ZONE 'UTC') < date_trunc('month', $1::timestamptz AT TIME ZONE 'UTC'))
 LIMIT $2;`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
