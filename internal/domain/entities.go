package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNoCredentials       = errors.New("no credentials available")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrLedgerUnavailable   = errors.New("ledger unavailable")
	ErrInternal            = errors.New("internal error")
)

// MaxErrors is the consecutive-failure threshold after which a credential is
// excluded from selection for the remainder of the day.
const MaxErrors = 3

// Credential represents one upstream account.
// Invariants: ID stable for the process lifetime; Secret never logged;
// lower Priority = preferred. Immutable after startup.
type Credential struct {
	ID       string
	Secret   string
	Priority int
}

// CredentialsFromSecrets builds the ordered credential list from configured
// secrets. IDs are derived from configuration order so that ledger keys stay
// stable across restarts as long as the key order does not change.
func CredentialsFromSecrets(secrets []string) []Credential {
	creds := make([]Credential, 0, len(secrets))
	for i, s := range secrets {
		if s == "" {
			continue
		}
		creds = append(creds, Credential{
			ID:       fmt.Sprintf("key_%d", i+1),
			Secret:   s,
			Priority: i,
		})
	}
	return creds
}

// CredentialStatus is a ledger snapshot row for one credential on one day.
type CredentialStatus struct {
	ID     string
	Usage  int64
	Errors int64
}

// UpstreamError carries a non-2xx upstream response so the proxy can stay
// transparent: the original status and body are propagated to the client.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d", e.Status)
}

// DayKey formats t as the calendar date in loc, the only temporal dimension
// of ledger state. Counter rollover happens at midnight in loc.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01-02")
}

// NextMidnight returns the start of the next day in loc, used for
// Retry-After hints when the credential pool is exhausted.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
}

// Ledger (port)
//
// Cross-process counters scoped by (credential, day). Increments are atomic
// per key; reads are snapshots and need not be atomic with each other.
// Increment implementations fail soft (log and return a best-effort count);
// read failures must wrap ErrLedgerUnavailable because selection cannot
// enforce quotas without a readable ledger.
type Ledger interface {
	IncrementUsage(ctx Context, credID, day string) (int64, error)
	IncrementError(ctx Context, credID, day string) (int64, error)
	GetUsage(ctx Context, credID, day string) (int64, error)
	GetErrors(ctx Context, credID, day string) (int64, error)
	ListAvailable(ctx Context, credIDs []string, day string) ([]CredentialStatus, error)
	RecordCallTime(ctx Context, credID, day string, at time.Time) error
	ListCallTimes(ctx Context, credID, day string) ([]time.Time, error)
	Reset(ctx Context, credID, day string) error
}

// Cache (port)
//
// Bounded TTL map from fingerprint to upstream response body. Bodies are not
// cloned on read; callers must treat them as immutable.
type Cache interface {
	Get(fp string) ([]byte, bool)
	Set(fp string, body []byte)
	Clear() int
	Size() int
}

// WeatherProvider (port)
//
// One upstream call with one credential. A non-2xx response surfaces as
// *UpstreamError; transport failures wrap ErrUpstreamUnavailable.
type WeatherProvider interface {
	Fetch(ctx Context, q WeatherQuery, cred Credential) ([]byte, error)
}

// Context is an alias to keep domain signatures compact; adapters and
// usecases pass context.Context through.
type Context = context.Context
