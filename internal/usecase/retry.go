package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"jsonprompt-saas/internal/domain"
	"jsonprompt-saas/internal/domain/ports/repository"
	"jsonprompt-saas/internal/infra/metrics"
)

// maxTxAttempts bounds optimistic-concurrency retries before the caller gets
// ErrRetryLater.
const maxTxAttempts = 3

var serializableTx = pgx.TxOptions{IsoLevel: pgx.Serializable}

// withSerializableRetry runs fn in a Serializable transaction, retrying on
// serialization failures and deadlocks. Domain errors pass through untouched
// so callers can map them to responses.
func withSerializableRetry(ctx context.Context, tm repository.TransactionManager, fn func(ctx context.Context, tx repository.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = tm.WithTx(ctx, serializableTx, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
		metrics.IncTxRetry()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 25 * time.Millisecond):
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrRetryLater, err)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	// 40001 serialization_failure, 40P01 deadlock_detected
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
