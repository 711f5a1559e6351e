package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// BuildLedgerCheck returns the readiness check for the ledger backend.
// Requests cannot be served safely when the ledger is unreachable, so the
// readiness probe gates on it.
func BuildLedgerCheck(rdb *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return fmt.Errorf("ledger not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
