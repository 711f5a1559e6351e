// Package redisledger implements the shared per-credential per-day ledger on
// a single Redis instance. Counters live under deterministic keys scoped by
// the day string, so correctness comes from the key layout; the TTL is only a
// safety ceiling against unbounded growth.
package redisledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/openweather-proxy/internal/domain"
)

// CounterTTL is the safety ceiling for ledger keys. Stale day keys are never
// consulted, so a refresh-on-write 48h expiry is sufficient.
const CounterTTL = 48 * time.Hour

// Ledger is the Redis-backed implementation of domain.Ledger.
type Ledger struct {
	rdb    *redis.Client
	prefix string
}

// New wraps an existing Redis client. The prefix namespaces all ledger keys;
// pass "" for none.
func New(rdb *redis.Client, prefix string) *Ledger {
	return &Ledger{rdb: rdb, prefix: prefix}
}

func (l *Ledger) usageKey(credID, day string) string {
	return l.prefix + "usage:" + credID + ":" + day
}

func (l *Ledger) errorsKey(credID, day string) string {
	return l.prefix + "errors:" + credID + ":" + day
}

func (l *Ledger) timesKey(credID, day string) string {
	return l.prefix + "times:" + credID + ":" + day
}

// IncrementUsage atomically bumps the usage counter and refreshes its TTL.
// Failures are soft: the pipeline must not lose a served response because the
// ledger write was lost, so we log and return a best-effort count.
func (l *Ledger) IncrementUsage(ctx context.Context, credID, day string) (int64, error) {
	return l.increment(ctx, l.usageKey(credID, day), credID, "usage")
}

// IncrementError atomically bumps the consecutive-error counter. Same soft
// failure semantics as IncrementUsage.
func (l *Ledger) IncrementError(ctx context.Context, credID, day string) (int64, error) {
	return l.increment(ctx, l.errorsKey(credID, day), credID, "errors")
}

func (l *Ledger) increment(ctx context.Context, key, credID, kind string) (int64, error) {
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, CounterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("ledger increment failed",
			slog.String("kind", kind),
			slog.String("credential", credID),
			slog.Any("error", err))
		return 0, nil
	}
	return incr.Val(), nil
}

// GetUsage returns the usage counter, 0 when absent.
func (l *Ledger) GetUsage(ctx context.Context, credID, day string) (int64, error) {
	return l.getCounter(ctx, l.usageKey(credID, day))
}

// GetErrors returns the error counter, 0 when absent.
func (l *Ledger) GetErrors(ctx context.Context, credID, day string) (int64, error) {
	return l.getCounter(ctx, l.errorsKey(credID, day))
}

func (l *Ledger) getCounter(ctx context.Context, key string) (int64, error) {
	v, err := l.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: get %s: %v", domain.ErrLedgerUnavailable, key, err)
	}
	return v, nil
}

// ListAvailable returns the usage/error snapshot for every credential.
// Reads are pipelined but not atomic with each other; selection tolerates the
// races and resolves ties by priority. A read failure is terminal because the
// selector cannot enforce quotas without it.
func (l *Ledger) ListAvailable(ctx context.Context, credIDs []string, day string) ([]domain.CredentialStatus, error) {
	pipe := l.rdb.Pipeline()
	usageCmds := make([]*redis.StringCmd, len(credIDs))
	errorCmds := make([]*redis.StringCmd, len(credIDs))
	for i, id := range credIDs {
		usageCmds[i] = pipe.Get(ctx, l.usageKey(id, day))
		errorCmds[i] = pipe.Get(ctx, l.errorsKey(id, day))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: snapshot for %s: %v", domain.ErrLedgerUnavailable, day, err)
	}

	out := make([]domain.CredentialStatus, len(credIDs))
	for i, id := range credIDs {
		out[i] = domain.CredentialStatus{
			ID:     id,
			Usage:  counterVal(usageCmds[i]),
			Errors: counterVal(errorCmds[i]),
		}
	}
	return out, nil
}

func counterVal(cmd *redis.StringCmd) int64 {
	v, err := cmd.Int64()
	if err != nil {
		return 0
	}
	return v
}

// RecordCallTime appends a millisecond timestamp to the per-day call log that
// backs hourly-distribution telemetry. Best effort.
func (l *Ledger) RecordCallTime(ctx context.Context, credID, day string, at time.Time) error {
	key := l.timesKey(credID, day)
	pipe := l.rdb.TxPipeline()
	pipe.RPush(ctx, key, at.UnixMilli())
	pipe.Expire(ctx, key, CounterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("ledger call-time record failed",
			slog.String("credential", credID),
			slog.Any("error", err))
	}
	return nil
}

// ListCallTimes returns the recorded call timestamps for (credID, day).
func (l *Ledger) ListCallTimes(ctx context.Context, credID, day string) ([]time.Time, error) {
	vals, err := l.rdb.LRange(ctx, l.timesKey(credID, day), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: call times for %s: %v", domain.ErrLedgerUnavailable, credID, err)
	}
	out := make([]time.Time, 0, len(vals))
	for _, v := range vals {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, time.UnixMilli(ms))
	}
	return out, nil
}

// Reset clears the counters for one credential and day. Test fixtures only.
func (l *Ledger) Reset(ctx context.Context, credID, day string) error {
	keys := []string{
		l.usageKey(credID, day),
		l.errorsKey(credID, day),
		l.timesKey(credID, day),
	}
	if err := l.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: reset %s: %v", domain.ErrLedgerUnavailable, credID, err)
	}
	return nil
}
