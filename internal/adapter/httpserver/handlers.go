package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/fairyhunter13/openweather-proxy/internal/adapter/observability"
	"github.com/fairyhunter13/openweather-proxy/internal/domain"
	"github.com/fairyhunter13/openweather-proxy/internal/usecase"
)

// OneCallHandler serves the main proxy endpoint. On success the upstream
// response body is relayed verbatim.
func (s *Server) OneCallHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseWeatherQuery(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		body, err := s.Weather.GetWeather(r.Context(), q)
		if err != nil {
			observability.LoggerFromContext(r.Context()).Warn("weather request failed",
				"lat", q.Lat, "lon", q.Lon, "error", err)
			s.writeError(w, r, err)
			return
		}
		writeUpstreamBody(w, body)
	}
}

// CacheClearHandler empties the result cache.
func (s *Server) CacheClearHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		n := s.Cache.Clear()
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"cleared": n,
		})
	}
}

// CacheInfoHandler reports cache counters and configuration.
func (s *Server) CacheInfoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Cache.GetStats())
	}
}

type warmupLocation struct {
	Lat   *float64 `json:"lat" validate:"required"`
	Lon   *float64 `json:"lon" validate:"required"`
	Units string   `json:"units" validate:"omitempty,oneof=standard metric imperial"`
	Lang  string   `json:"lang" validate:"omitempty,min=2,max=5"`
}

type warmupRequest struct {
	Locations []warmupLocation `json:"locations" validate:"required,min=1,dive"`
}

// CacheWarmupHandler pre-populates the cache for up to MaxWarmupLocations
// locations through the normal pipeline.
func (s *Server) CacheWarmupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req warmupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: invalid JSON body", domain.ErrInvalidArgument))
			return
		}
		if err := getValidator().Struct(req); err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, validationMessage(err)))
			return
		}
		if len(req.Locations) > usecase.MaxWarmupLocations {
			s.writeError(w, r, fmt.Errorf("%w: at most %d locations per warmup", domain.ErrInvalidArgument, usecase.MaxWarmupLocations))
			return
		}

		queries := make([]domain.WeatherQuery, 0, len(req.Locations))
		for _, loc := range req.Locations {
			q := domain.WeatherQuery{Lat: *loc.Lat, Lon: *loc.Lon, Units: loc.Units, Lang: loc.Lang}
			p := weatherParams{Lat: q.Lat, Lon: q.Lon, Units: q.Units, Lang: q.Lang}
			if err := getValidator().Struct(p); err != nil {
				s.writeError(w, r, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, validationMessage(err)))
				return
			}
			queries = append(queries, q)
		}

		results := s.Weather.Warmup(r.Context(), queries)
		ok := 0
		for _, res := range results {
			if res.Success {
				ok++
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"warmed":    ok,
			"failed":    len(results) - ok,
			"locations": results,
		})
	}
}
