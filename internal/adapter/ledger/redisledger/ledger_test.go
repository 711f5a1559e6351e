package redisledger

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/openweather-proxy/internal/domain"
)

func newTestLedger(t *testing.T) (*Ledger, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return New(rdb, "owm:"), mr
}

func TestIncrementUsage(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLedger(t)

	n, err := l.IncrementUsage(ctx, "key_1", "2024-03-09")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	n, err = l.IncrementUsage(ctx, "key_1", "2024-03-09")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	// TTL is set as a safety ceiling.
	ttl := mr.TTL("owm:usage:key_1:2024-03-09")
	require.True(t, ttl > 0 && ttl <= CounterTTL)
}

func TestIncrementError(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	for i := 1; i <= 3; i++ {
		n, err := l.IncrementError(ctx, "key_2", "2024-03-09")
		require.NoError(t, err)
		require.EqualValues(t, i, n)
	}
}

func TestGetCounters_AbsentIsZero(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	u, err := l.GetUsage(ctx, "key_1", "2024-03-09")
	require.NoError(t, err)
	require.Zero(t, u)

	e, err := l.GetErrors(ctx, "key_1", "2024-03-09")
	require.NoError(t, err)
	require.Zero(t, e)
}

func TestListAvailable(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	_, _ = l.IncrementUsage(ctx, "key_1", "2024-03-09")
	_, _ = l.IncrementUsage(ctx, "key_1", "2024-03-09")
	_, _ = l.IncrementError(ctx, "key_2", "2024-03-09")

	snap, err := l.ListAvailable(ctx, []string{"key_1", "key_2", "key_3"}, "2024-03-09")
	require.NoError(t, err)
	require.Len(t, snap, 3)
	require.EqualValues(t, 2, snap[0].Usage)
	require.EqualValues(t, 0, snap[0].Errors)
	require.EqualValues(t, 1, snap[1].Errors)
	require.Zero(t, snap[2].Usage)
}

func TestDayKeysIsolateCounters(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	_, _ = l.IncrementUsage(ctx, "key_1", "2024-03-09")
	u, err := l.GetUsage(ctx, "key_1", "2024-03-10")
	require.NoError(t, err)
	require.Zero(t, u)
}

func TestIncrement_BackendDown_FailsSoft(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLedger(t)
	mr.Close()

	n, err := l.IncrementUsage(ctx, "key_1", "2024-03-09")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestReads_BackendDown_Terminal(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLedger(t)
	mr.Close()

	_, err := l.GetUsage(ctx, "key_1", "2024-03-09")
	require.ErrorIs(t, err, domain.ErrLedgerUnavailable)

	_, err = l.ListAvailable(ctx, []string{"key_1"}, "2024-03-09")
	require.ErrorIs(t, err, domain.ErrLedgerUnavailable)
}

func TestCallTimes(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	at := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
	require.NoError(t, l.RecordCallTime(ctx, "key_1", "2024-03-09", at))
	require.NoError(t, l.RecordCallTime(ctx, "key_1", "2024-03-09", at.Add(time.Minute)))

	times, err := l.ListCallTimes(ctx, "key_1", "2024-03-09")
	require.NoError(t, err)
	require.Len(t, times, 2)
	require.Equal(t, at.UnixMilli(), times[0].UnixMilli())
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	_, _ = l.IncrementUsage(ctx, "key_1", "2024-03-09")
	_, _ = l.IncrementError(ctx, "key_1", "2024-03-09")
	require.NoError(t, l.Reset(ctx, "key_1", "2024-03-09"))

	u, err := l.GetUsage(ctx, "key_1", "2024-03-09")
	require.NoError(t, err)
	require.Zero(t, u)
	e, err := l.GetErrors(ctx, "key_1", "2024-03-09")
	require.NoError(t, err)
	require.Zero(t, e)
}
