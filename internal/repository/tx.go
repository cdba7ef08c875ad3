package repository

import (
	"context"
	"database/sql"
)

// WithTx runs fn inside a database transaction.  The transaction is
// committed when fn returns nil and rolled back when fn returns an
// error or panics, so the transactional resource is released on every
// exit path.  Errors from fn are returned unchanged; a commit error
// replaces a nil result.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
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
		err = tx.Commit()
	}()
	err = fn(tx)
	return err
}
