package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
)

// RollbackError is returned when a unit of work failed and the rollback
// that followed also failed. It unwraps to the original failure.
type RollbackError struct {
	Err      error
	Rollback error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v (rollback also failed: %v)", e.Err, e.Rollback)
}

func (e *RollbackError) Unwrap() error { return e.Err }

// beginner is satisfied by *sql.DB and *sql.Conn.
type beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// inTx runs fn inside a transaction. The transaction is committed if fn
// returns nil and rolled back otherwise, including when fn panics.
func inTx(ctx context.Context, db beginner, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return &RollbackError{Err: err, Rollback: rbErr}
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}
