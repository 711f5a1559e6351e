// Package memledger provides an in-process ledger used by tests. Production
// deployments share quota state through the Redis-backed ledger; this one
// exists so pipeline behavior can be exercised without a backend.
package memledger

import (
	"context"
	"sync"
	"time"

	"github.com/fairyhunter13/openweather-proxy/internal/domain"
)

// Ledger is a mutex-guarded map implementation of domain.Ledger.
type Ledger struct {
	mu     sync.Mutex
	usage  map[string]int64
	errors map[string]int64
	times  map[string][]time.Time

	// FailReads simulates an unreachable backend on read paths.
	FailReads bool
}

// New constructs an empty in-memory ledger.
func New() *Ledger {
	return &Ledger{
		usage:  make(map[string]int64),
		errors: make(map[string]int64),
		times:  make(map[string][]time.Time),
	}
}

func key(credID, day string) string { return credID + ":" + day }

// IncrementUsage bumps the usage counter.
func (l *Ledger) IncrementUsage(_ context.Context, credID, day string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.usage[key(credID, day)]++
	return l.usage[key(credID, day)], nil
}

// IncrementError bumps the error counter.
func (l *Ledger) IncrementError(_ context.Context, credID, day string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors[key(credID, day)]++
	return l.errors[key(credID, day)], nil
}

// GetUsage returns the usage counter, 0 when absent.
func (l *Ledger) GetUsage(_ context.Context, credID, day string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailReads {
		return 0, domain.ErrLedgerUnavailable
	}
	return l.usage[key(credID, day)], nil
}

// GetErrors returns the error counter, 0 when absent.
func (l *Ledger) GetErrors(_ context.Context, credID, day string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailReads {
		return 0, domain.ErrLedgerUnavailable
	}
	return l.errors[key(credID, day)], nil
}

// ListAvailable returns the snapshot for every credential.
func (l *Ledger) ListAvailable(_ context.Context, credIDs []string, day string) ([]domain.CredentialStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailReads {
		return nil, domain.ErrLedgerUnavailable
	}
	out := make([]domain.CredentialStatus, len(credIDs))
	for i, id := range credIDs {
		out[i] = domain.CredentialStatus{
			ID:     id,
			Usage:  l.usage[key(id, day)],
			Errors: l.errors[key(id, day)],
		}
	}
	return out, nil
}

// RecordCallTime appends a call timestamp.
func (l *Ledger) RecordCallTime(_ context.Context, credID, day string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.times[key(credID, day)] = append(l.times[key(credID, day)], at)
	return nil
}

// ListCallTimes returns recorded call timestamps.
func (l *Ledger) ListCallTimes(_ context.Context, credID, day string) ([]time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailReads {
		return nil, domain.ErrLedgerUnavailable
	}
	return append([]time.Time(nil), l.times[key(credID, day)]...), nil
}

// Reset clears counters for one credential and day.
func (l *Ledger) Reset(_ context.Context, credID, day string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.usage, key(credID, day))
	delete(l.errors, key(credID, day))
	delete(l.times, key(credID, day))
	return nil
}
