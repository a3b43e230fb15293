package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SQLSTATE codes surfaced as ContentionError.
const (
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgSerializationFailure = "40001"
	pgUniqueViolation      = "23505"
)

var lockTimeoutMS atomic.Int64

func init() { lockTimeoutMS.Store(5000) }

// SetLockTimeout bounds how long a write transaction waits for a row lock.
func SetLockTimeout(d time.Duration) {
	if d > 0 {
		lockTimeoutMS.Store(d.Milliseconds())
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
// Lock waits are bounded and driver errors are mapped to the service taxonomy.
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = %d", lockTimeoutMS.Load())).Error; err != nil {
			return err
		}
		return fn(tx)
	})
	return translateDBError(err)
}

func translateDBError(err error) error {
	if err == nil {
		return nil
	}
	var kerr KindError
	if errors.As(err, &kerr) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &ConflictError{Reason: ReasonDuplicateCode, Msg: "a record with the same code already exists"}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailure:
			return &ContentionError{Err: err}
		case pgUniqueViolation:
			return &ConflictError{Reason: ReasonDuplicateCode, Msg: "a record with the same code already exists"}
		}
	}
	return err
}
