package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/openweather-proxy/internal/adapter/ledger/memledger"
	"github.com/fairyhunter13/openweather-proxy/internal/cache"
	"github.com/fairyhunter13/openweather-proxy/internal/config"
	"github.com/fairyhunter13/openweather-proxy/internal/domain"
	"github.com/fairyhunter13/openweather-proxy/internal/usecase"
)

type scriptedProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(q domain.WeatherQuery, cred domain.Credential) ([]byte, error)
}

func (p *scriptedProvider) Fetch(_ domain.Context, q domain.WeatherQuery, cred domain.Credential) ([]byte, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.fn != nil {
		return p.fn(q, cred)
	}
	return []byte(`{"current":{"temp":21.5}}`), nil
}

type harness struct {
	srv  *Server
	led  *memledger.Ledger
	prov *scriptedProvider
}

func newHarness(t *testing.T, dailyLimit int64) *harness {
	t.Helper()
	cfg := config.Config{
		AppIDKey:   "client-app-id",
		DailyLimit: dailyLimit,
		RetryCount: 1,
	}
	led := memledger.New()
	prov := &scriptedProvider{}
	rc := cache.New(true, time.Minute, 100)
	t.Cleanup(rc.Stop)

	creds := domain.CredentialsFromSecrets([]string{"s1", "s2"})
	sel := usecase.NewSelector(creds, led, dailyLimit)
	svc := usecase.NewWeatherService(sel, led, rc, prov, usecase.NewStats(), usecase.WeatherServiceConfig{
		CacheEnabled: true,
		RetryCount:   1,
		DayKeyLoc:    time.UTC,
	})
	srv := NewServer(cfg, svc, rc, led, func(context.Context) error { return nil }, "test")
	return &harness{srv: srv, led: led, prov: prov}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestOneCallHandler_Success(t *testing.T) {
	h := newHarness(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/data/3.0/onecall?lat=52.52&lon=13.405&units=metric", nil)
	rec := httptest.NewRecorder()
	h.srv.OneCallHandler()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"current":{"temp":21.5}}`, rec.Body.String())
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestOneCallHandler_MissingCoordinates(t *testing.T) {
	h := newHarness(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/data/3.0/onecall?lat=52.52", nil)
	rec := httptest.NewRecorder()
	h.srv.OneCallHandler()(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.NotEmpty(t, env.Error)
	require.Zero(t, h.prov.calls)
}

func TestOneCallHandler_OutOfRangeLat(t *testing.T) {
	h := newHarness(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/data/3.0/onecall?lat=91&lon=0", nil)
	rec := httptest.NewRecorder()
	h.srv.OneCallHandler()(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOneCallHandler_BadExclude(t *testing.T) {
	h := newHarness(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/data/3.0/onecall?lat=1&lon=2&exclude=bogus", nil)
	rec := httptest.NewRecorder()
	h.srv.OneCallHandler()(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOneCallHandler_PoolExhausted(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	day := h.srv.Weather.Day()
	_, _ = h.led.IncrementUsage(ctx, "key_1", day)
	_, _ = h.led.IncrementUsage(ctx, "key_2", day)

	req := httptest.NewRequest(http.MethodGet, "/data/3.0/onecall?lat=1&lon=2", nil)
	rec := httptest.NewRecorder()
	h.srv.OneCallHandler()(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)

	// Retry-After points at the next midnight in the DayKey zone.
	secs, err := time.ParseDuration(rec.Header().Get("Retry-After") + "s")
	require.NoError(t, err)
	require.Greater(t, secs, time.Duration(0))
	require.LessOrEqual(t, secs, 24*time.Hour)
}

func TestOneCallHandler_UpstreamErrorPassthrough(t *testing.T) {
	h := newHarness(t, 100)
	h.prov.fn = func(domain.WeatherQuery, domain.Credential) ([]byte, error) {
		return nil, &domain.UpstreamError{Status: http.StatusNotFound, Body: []byte(`{"cod":"404","message":"city not found"}`)}
	}

	req := httptest.NewRequest(http.MethodGet, "/data/3.0/onecall?lat=1&lon=2", nil)
	rec := httptest.NewRecorder()
	h.srv.OneCallHandler()(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"cod":"404","message":"city not found"}`, rec.Body.String())
}

func TestAppIDGuard(t *testing.T) {
	h := newHarness(t, 100)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	guarded := h.srv.AppIDGuard()(next)

	cases := []struct {
		name   string
		target string
		status int
	}{
		{"missing", "/data/3.0/onecall?lat=1&lon=2", http.StatusBadRequest},
		{"wrong", "/data/3.0/onecall?lat=1&lon=2&appid=nope", http.StatusUnauthorized},
		{"correct", "/data/3.0/onecall?lat=1&lon=2&appid=client-app-id", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))
			require.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestCacheClearHandler(t *testing.T) {
	h := newHarness(t, 100)
	h.srv.Cache.Set("fp", []byte("x"))

	rec := httptest.NewRecorder()
	h.srv.CacheClearHandler()(rec, httptest.NewRequest(http.MethodDelete, "/data/3.0/cache", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Success bool `json:"success"`
		Cleared int  `json:"cleared"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.True(t, out.Success)
	require.Equal(t, 1, out.Cleared)
	require.Equal(t, 0, h.srv.Cache.Size())
}

func TestCacheWarmupHandler(t *testing.T) {
	h := newHarness(t, 100)

	body := `{"locations":[{"lat":52.52,"lon":13.405},{"lat":48.85,"lon":2.35,"units":"metric"}]}`
	req := httptest.NewRequest(http.MethodPost, "/data/3.0/cache/warmup", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.srv.CacheWarmupHandler()(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Success bool `json:"success"`
		Warmed  int  `json:"warmed"`
		Failed  int  `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.True(t, out.Success)
	require.Equal(t, 2, out.Warmed)
	require.Zero(t, out.Failed)
	require.Equal(t, 2, h.srv.Cache.Size())
}

func TestCacheWarmupHandler_Rejections(t *testing.T) {
	h := newHarness(t, 100)

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", `{"locations":`},
		{"empty locations", `{"locations":[]}`},
		{"missing lon", `{"locations":[{"lat":1}]}`},
		{"lat out of range", `{"locations":[{"lat":95,"lon":0}]}`},
		{"bad units", `{"locations":[{"lat":1,"lon":2,"units":"kelvin"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/data/3.0/cache/warmup", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.srv.CacheWarmupHandler()(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	require.Zero(t, h.prov.calls)
}

func TestStatsKeysHandler(t *testing.T) {
	h := newHarness(t, 10)
	ctx := context.Background()
	day := h.srv.Weather.Day()
	_, _ = h.led.IncrementUsage(ctx, "key_1", day)
	for i := 0; i < domain.MaxErrors; i++ {
		_, _ = h.led.IncrementError(ctx, "key_2", day)
	}

	rec := httptest.NewRecorder()
	h.srv.StatsKeysHandler()(rec, httptest.NewRequest(http.MethodGet, "/stats/keys", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		Day  string      `json:"day"`
		Keys []keyStatus `json:"keys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, day, out.Day)
	require.Len(t, out.Keys, 2)
	require.Equal(t, keyStatus{ID: "key_1", Usage: 1, Limit: 10, Remaining: 9, Available: true}, out.Keys[0])
	require.False(t, out.Keys[1].Available)
	require.EqualValues(t, domain.MaxErrors, out.Keys[1].Errors)
}

func TestStatsExportHandler_CSV(t *testing.T) {
	h := newHarness(t, 10)

	rec := httptest.NewRecorder()
	h.srv.StatsExportHandler()(rec, httptest.NewRequest(http.MethodGet, "/stats/export?format=csv", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3) // header + two credentials
	require.Equal(t, "credential,day,usage,errors,limit,remaining,available", lines[0])
	require.True(t, strings.HasPrefix(lines[1], "key_1,"))
}

func TestStatsExportHandler_BadFormat(t *testing.T) {
	h := newHarness(t, 10)

	rec := httptest.NewRecorder()
	h.srv.StatsExportHandler()(rec, httptest.NewRequest(http.MethodGet, "/stats/export?format=xml", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsHandler_LedgerDown(t *testing.T) {
	h := newHarness(t, 10)
	h.led.FailReads = true

	rec := httptest.NewRecorder()
	h.srv.StatsKeysHandler()(rec, httptest.NewRequest(http.MethodGet, "/stats/keys", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealthDetailedHandler(t *testing.T) {
	h := newHarness(t, 10)

	rec := httptest.NewRecorder()
	h.srv.HealthDetailedHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "ok", out["status"])
	require.Equal(t, "ok", out["ledger"])
	require.EqualValues(t, 2, out["credentialsTotal"])
	require.EqualValues(t, 2, out["credentialsAvailable"])
}

func TestHealthDetailedHandler_Exhausted(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	day := h.srv.Weather.Day()
	_, _ = h.led.IncrementUsage(ctx, "key_1", day)
	_, _ = h.led.IncrementUsage(ctx, "key_2", day)

	rec := httptest.NewRecorder()
	h.srv.HealthDetailedHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))

	// Exhaustion is reported but never fails the probe.
	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "exhausted", out["status"])
	require.EqualValues(t, 0, out["credentialsAvailable"])
}

func TestReadyHandler(t *testing.T) {
	h := newHarness(t, 10)

	rec := httptest.NewRecorder()
	h.srv.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	h.srv.LedgerCheck = func(context.Context) error { return domain.ErrLedgerUnavailable }
	rec = httptest.NewRecorder()
	h.srv.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVersionHandler(t *testing.T) {
	h := newHarness(t, 10)

	rec := httptest.NewRecorder()
	h.srv.VersionHandler()(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"version":"test"}`, rec.Body.String())
}
