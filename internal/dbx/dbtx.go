// Package dbx provides small DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// transaction helpers, and classification of PostgreSQL errors.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxFunc is the unit of work executed inside a transaction.
type TxFunc func(ctx context.Context, tx DBTX) error

// Transactor runs units of work atomically. Services depend on it instead of
// *sql.DB so that the in-memory backend can provide its own transactions.
type Transactor interface {
	InTx(ctx context.Context, fn TxFunc) error
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
// Deferred constraints fire at commit, so commit errors go through MapError.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn TxFunc) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = MapError("commit", tx.Commit())
	}()

	err = fn(ctx, tx)
	return err
}

// SQLTransactor implements Transactor over *sql.DB.
type SQLTransactor struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// NewSQLTransactor returns a Transactor using READ COMMITTED transactions;
// repositories take row locks where a decision must stay valid until commit.
func NewSQLTransactor(db *sql.DB) *SQLTransactor {
	return &SQLTransactor{db: db, opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted}}
}

// InTx implements Transactor.
func (t *SQLTransactor) InTx(ctx context.Context, fn TxFunc) error {
	return WithTx(ctx, t.db, t.opts, fn)
}

// SQLSTATE codes we translate into domain errors.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
	codeFKViolation     = "23503"
	codeInvalidText     = "22P02"
)

// MapError wraps err with a domain sentinel when it is a constraint violation
// reported by PostgreSQL; sql.ErrNoRows becomes common.ErrNotFound. A
// malformed UUID (22P02) names no row, so it is ErrNotFound too. Other
// errors are wrapped with op only.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w: %s", op, common.ErrConflict, pgErr.ConstraintName)
		case codeCheckViolation:
			return fmt.Errorf("%s: %w: %s", op, common.ErrValidation, pgErr.ConstraintName)
		case codeFKViolation:
			return fmt.Errorf("%s: %w: %s", op, common.ErrNotFound, pgErr.ConstraintName)
		case codeInvalidText:
			return fmt.Errorf("%s: %w", op, common.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ExpectOneRow converts a RowsAffected count into ErrNotFound when nothing
// matched.
func ExpectOneRow(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected error: %w", op, err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
