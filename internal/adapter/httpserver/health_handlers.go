package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/fairyhunter13/openweather-proxy/internal/domain"
)

// HealthHandler is the basic health probe.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "ok",
			"version":       s.Version,
			"uptimeSeconds": time.Since(s.StartedAt).Seconds(),
		})
	}
}

// HealthDetailedHandler adds ledger reachability and credential availability.
// Degraded states still answer 200 with status fields so dashboards can poll
// it without tripping restart loops.
func (s *Server) HealthDetailedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ledgerStatus := "ok"
		if err := s.LedgerCheck(r.Context()); err != nil {
			ledgerStatus = "unreachable"
		}

		available := 0
		total := len(s.Weather.Selector().Credentials())
		if ledgerStatus == "ok" {
			creds, err := s.Weather.Selector().SelectAll(r.Context(), s.Weather.Day())
			switch {
			case err == nil:
				available = len(creds)
			case errors.Is(err, domain.ErrNoCredentials):
				available = 0
			default:
				ledgerStatus = "unreachable"
			}
		}

		status := "ok"
		if ledgerStatus != "ok" {
			status = "degraded"
		} else if available == 0 {
			status = "exhausted"
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":               status,
			"version":              s.Version,
			"uptimeSeconds":        time.Since(s.StartedAt).Seconds(),
			"ledger":               ledgerStatus,
			"day":                  s.Weather.Day(),
			"credentialsTotal":     total,
			"credentialsAvailable": available,
			"cache":                s.Cache.GetStats(),
		})
	}
}

// ReadyHandler fails when the ledger is unreachable: requests cannot be
// served safely without quota state.
func (s *Server) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.LedgerCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"ready": false,
				"error": "ledger unreachable",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ready": true})
	}
}

// LiveHandler answers 200 while the process runs.
func (s *Server) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"alive": true})
	}
}

// UptimeHandler reports process uptime.
func (s *Server) UptimeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"startedAt":     s.StartedAt.UTC().Format(time.RFC3339),
			"uptimeSeconds": time.Since(s.StartedAt).Seconds(),
		})
	}
}

// VersionHandler reports the build version.
func (s *Server) VersionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"version": s.Version})
	}
}
