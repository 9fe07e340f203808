package core

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// Atomic runs fn within a single storage transaction: every repository call
	// made with the provided executor commits or rolls back as one unit.
	Atomic interface {
		Transact(ctx context.Context, fn func(tx DBExecutor) error) error
	}
)

// RetryTransient retries op up to maxAttempts times while it fails with
// ErrStorageUnavailable, waiting 100ms longer between each attempt.
// Any other error is surfaced immediately.
func RetryTransient(ctx context.Context, maxAttempts int, op func() error) error {
	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = op(); errors.Cause(err) != ErrStorageUnavailable {
			return err
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(err, ctx.Err().Error())
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return err
}
