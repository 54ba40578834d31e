// Package postgres implements the durable task store on PostgreSQL.
//
// Every repository method is a single statement (or single transaction), so
// the atomicity guarantees of the store come straight from the database. The
// lease path relies on FOR UPDATE SKIP LOCKED to hand each pending task to
// exactly one worker under arbitrary concurrency.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the minimal pool surface the repositories need. *pgxpool.Pool
// satisfies it; tests provide stubs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}
