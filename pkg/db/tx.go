package db

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteFunc is a callback that performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// WithTx runs fns in order inside a single transaction, committing only if all succeed.
func WithTx(ctx context.Context, db *sql.DB, fns ...WriteFunc) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, fn := range fns {
		if err := fn(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %d writes: %w", len(fns), err)
	}
	return nil
}
