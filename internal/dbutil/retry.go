// Package dbutil holds small gorm helpers shared by the Config Store and the
// Log Sink: backend selection from a DSN and SQLite busy-retry wrapping.
package dbutil

import (
	"context"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"

	"github.com/loomrelay/gateway/common/config"
)

const sqliteBusyRetryBaseDelay = 20 * time.Millisecond

// WithSQLiteBusyRetry executes operation and retries when SQLite reports a
// busy/locked database. The retry loop only triggers when usingSQLite is true
// and the error message indicates a lock, matching the driver's string-only
// busy signaling.
func WithSQLiteBusyRetry(ctx context.Context, usingSQLite bool, operation func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !usingSQLite {
		return operation()
	}

	attempts := config.SQLiteBusyRetryAttempts
	var lastErr error
	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * sqliteBusyRetryBaseDelay
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Wrap(lastErr, "context canceled while waiting for SQLite lock")
			case <-timer.C:
			}
		}

		lastErr = operation()
		if lastErr == nil || !shouldRetrySQLiteBusy(lastErr) {
			return lastErr
		}
	}

	return errors.Wrap(lastErr, "SQLite remained busy after retries")
}

func shouldRetrySQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "database is busy")
}
