package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const maxRetries = 5

// recoverableErrors are transport-level failures seen when the server or a
// proxy drops idle connections. Resetting the pool and retrying gets a fresh
// connection; anything else propagates immediately.
var recoverableErrors = []string{
	"ssl connection has been closed unexpectedly",
	"server closed the connection unexpectedly",
	"connection already closed",
	"connection not open",
}

func isRecoverable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range recoverableErrors {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func retryBackoff(attempt int) time.Duration {
	d := time.Duration(attempt) * 100 * time.Millisecond
	if d > time.Second {
		return time.Second
	}
	return d
}

// withRetry runs fn, retrying after a pool reset when the failure looks like
// a dropped connection.
func (p *PostgresStore) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !isRecoverable(err) {
			return err
		}
		slog.Warn("postgres: transport error, resetting pool",
			"op", op, "attempt", attempt, "err", err)
		p.pool.Reset()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff(attempt)):
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, maxRetries, err)
}
