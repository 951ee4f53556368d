package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via `tx`.
//
// Use-case interfaces stay clean (no storage types leaking out), while
// repository methods accepting `tx Tx` can detect a live transaction and run
// their statements on it. Repositories MUST gracefully accept a nil tx
// (non-transactional path). The concrete type of `tx` is infra-defined
// (pgx.Tx for Postgres).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
