package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx, so repositories can
// run standalone or inside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgUniqueViolation is the Postgres error code for unique constraint
// violations, used to detect (id, timestamp) version conflicts.
const pgUniqueViolation = "23505"

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
