// Package usecase contains the request pipeline: credential selection,
// in-flight coalescing, upstream failover and telemetry.
package usecase

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/fairyhunter13/openweather-proxy/internal/adapter/observability"
	"github.com/fairyhunter13/openweather-proxy/internal/domain"
)

// WeatherService orchestrates one logical weather request: fingerprint →
// cache → single-flight coalescing → credential iteration with bounded retry
// → ledger update → cache fill.
type WeatherService struct {
	selector *Selector
	ledger   domain.Ledger
	cache    domain.Cache
	provider domain.WeatherProvider
	stats    *Stats

	cacheEnabled bool
	retryCount   int
	retryDelay   time.Duration
	loc          *time.Location

	group singleflight.Group

	// now is injectable so day rollover can be tested.
	now func() time.Time
}

// WeatherServiceConfig carries the pipeline knobs.
type WeatherServiceConfig struct {
	CacheEnabled bool
	RetryCount   int
	RetryDelay   time.Duration
	DayKeyLoc    *time.Location
}

// NewWeatherService wires the pipeline. loc defaults to the server's local
// zone when nil.
func NewWeatherService(sel *Selector, ledger domain.Ledger, cache domain.Cache, provider domain.WeatherProvider, stats *Stats, cfg WeatherServiceConfig) *WeatherService {
	loc := cfg.DayKeyLoc
	if loc == nil {
		loc = time.Local
	}
	retryCount := cfg.RetryCount
	if retryCount < 1 {
		retryCount = 1
	}
	return &WeatherService{
		selector:     sel,
		ledger:       ledger,
		cache:        cache,
		provider:     provider,
		stats:        stats,
		cacheEnabled: cfg.CacheEnabled,
		retryCount:   retryCount,
		retryDelay:   cfg.RetryDelay,
		loc:          loc,
		now:          time.Now,
	}
}

// Day returns the current DayKey.
func (s *WeatherService) Day() string {
	return domain.DayKey(s.now(), s.loc)
}

// Location returns the DayKey zone.
func (s *WeatherService) Location() *time.Location { return s.loc }

// Selector exposes the credential selector for health reporting.
func (s *WeatherService) Selector() *Selector { return s.selector }

// Stats exposes the telemetry collector.
func (s *WeatherService) Stats() *Stats { return s.stats }

// GetWeather serves one logical request. Duplicate concurrent requests with
// the same fingerprint share a single upstream call; the shared call runs on
// a detached context so a disconnecting client cannot abort it and its
// ledger/cache side effects always complete.
func (s *WeatherService) GetWeather(ctx domain.Context, q domain.WeatherQuery) ([]byte, error) {
	start := time.Now()
	fp := q.Fingerprint()
	s.stats.RecordRequest()

	if s.cacheEnabled {
		if body, ok := s.cache.Get(fp); ok {
			s.stats.RecordCacheHit()
			s.stats.ObserveResponseTime(time.Since(start))
			return body, nil
		}
	}

	detached := context.WithoutCancel(ctx)
	v, err, shared := s.group.Do(fp, func() (any, error) {
		s.stats.IncInFlight()
		defer s.stats.DecInFlight()
		return s.fetch(detached, q, fp)
	})
	if err != nil {
		s.stats.RecordError()
		s.stats.ObserveResponseTime(time.Since(start))
		return nil, err
	}
	if shared {
		slog.Debug("request coalesced onto in-flight fetch", slog.String("fingerprint", fp[:12]))
	}
	s.stats.ObserveResponseTime(time.Since(start))
	return v.([]byte), nil
}

// fetch iterates attempts × candidates until one upstream call succeeds.
// Backoff between attempts is linear: RetryDelay × attempt.
func (s *WeatherService) fetch(ctx domain.Context, q domain.WeatherQuery, fp string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retryCount; attempt++ {
		day := domain.DayKey(s.now(), s.loc)

		candidates, err := s.selector.SelectAll(ctx, day)
		if err != nil {
			if errors.Is(err, domain.ErrLedgerUnavailable) {
				// Without a readable ledger quotas cannot be enforced.
				return nil, err
			}
			if errors.Is(err, domain.ErrNoCredentials) {
				observability.SelectorExhaustedTotal.Inc()
			}
			lastErr = err
		} else {
			for _, cred := range candidates {
				s.stats.RecordUpstreamCall()
				body, err := s.provider.Fetch(ctx, q, cred)
				if err == nil {
					// Usage is charged before the body is returned so the
					// counter reflects the call even if the caller timed out.
					if _, ierr := s.ledger.IncrementUsage(ctx, cred.ID, day); ierr != nil {
						slog.Warn("usage increment failed", slog.String("credential", cred.ID), slog.Any("error", ierr))
					}
					_ = s.ledger.RecordCallTime(ctx, cred.ID, day, s.now())
					if s.cacheEnabled {
						s.cache.Set(fp, body)
						s.stats.RecordCacheWrite()
					}
					return body, nil
				}

				if _, ierr := s.ledger.IncrementError(ctx, cred.ID, day); ierr != nil {
					slog.Warn("error increment failed", slog.String("credential", cred.ID), slog.Any("error", ierr))
				}
				lastErr = err
				slog.Warn("upstream attempt failed, rotating credential",
					slog.Int("attempt", attempt),
					slog.String("credential", cred.ID),
					slog.Any("error", err))
			}
		}

		if attempt < s.retryCount {
			if err := sleepCtx(ctx, s.retryDelay*time.Duration(attempt)); err != nil {
				return nil, lastErrOr(lastErr, err)
			}
		}
	}
	if lastErr == nil {
		lastErr = domain.ErrUpstreamUnavailable
	}
	return nil, lastErr
}

func lastErrOr(lastErr, fallback error) error {
	if lastErr != nil {
		return lastErr
	}
	return fallback
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
