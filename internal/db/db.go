// Package db provides PostgreSQL-backed repositories for regions, the map
// viewport and cached series snapshots. All repositories accept a DBTX
// interface that is satisfied by both *pgxpool.Pool (for normal queries)
// and pgx.Tx (for transactional execution).
package db

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"regionwatch/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
// Repositories accept this so the same code works inside or outside a
// transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// beginner is implemented by *pgxpool.Pool and pgx.Tx.
type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// inTx runs fn inside a transaction when db can start one, and directly
// against db otherwise.
func inTx(ctx context.Context, db DBTX, fn func(DBTX) error) error {
	b, ok := db.(beginner)
	if !ok {
		return fn(db)
	}
	return pgx.BeginFunc(ctx, b, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL applied by Migrate.
func Schema() string { return schemaSQL }

// Migrate creates the tables if they do not exist. It is safe to run on
// every start.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply schema", err)
	}
	return nil
}
