package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/yeremiapane/restaurant-dispatch/apperror"
	"github.com/yeremiapane/restaurant-dispatch/utils"
	"gorm.io/gorm"
)

// MaxRetries bounds how often a transaction is replayed after a busy/locked error.
const MaxRetries = 4

var newBackOff = func() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(b, MaxRetries)
}

// IsTransient reports whether err is store contention worth replaying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		// lock wait timeout, deadlock
		return myErr.Number == 1205 || myErr.Number == 1213
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// WithRetry runs fn in a transaction, replaying the whole transaction on
// transient store errors. Exhausted retries come back as apperror.ErrTransient;
// every other error is returned untouched on the first failure.
func WithRetry(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			utils.InfoLogger.WithField("attempt", attempt).Warnf("Transient store error, retrying: %v", err)
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(op, backoff.WithContext(newBackOff(), ctx))
	if err != nil && IsTransient(err) {
		return apperror.Transient(err)
	}
	return err
}
