package httpserver

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fairyhunter13/openweather-proxy/internal/domain"
)

// keyStatus is the per-credential row reported by the stats surface.
// Only derived IDs appear here, never secrets.
type keyStatus struct {
	ID        string `json:"id"`
	Usage     int64  `json:"usage"`
	Errors    int64  `json:"errors"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Available bool   `json:"available"`
}

func (s *Server) keyStatuses(r *http.Request) ([]keyStatus, error) {
	day := s.Weather.Day()
	ids := s.Weather.Selector().CredentialIDs()
	snapshot, err := s.Ledger.ListAvailable(r.Context(), ids, day)
	if err != nil {
		return nil, err
	}
	out := make([]keyStatus, len(snapshot))
	for i, st := range snapshot {
		remaining := s.Cfg.DailyLimit - st.Usage
		if remaining < 0 {
			remaining = 0
		}
		out[i] = keyStatus{
			ID:        st.ID,
			Usage:     st.Usage,
			Errors:    st.Errors,
			Limit:     s.Cfg.DailyLimit,
			Remaining: remaining,
			Available: st.Usage < s.Cfg.DailyLimit && st.Errors < domain.MaxErrors,
		}
	}
	return out, nil
}

// StatsHandler reports the top-level telemetry snapshot.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Weather.Stats().Snapshot())
	}
}

// StatsDetailedHandler adds per-credential counters and the hourly call
// distribution derived from the ledger call log.
func (s *Server) StatsDetailedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := s.keyStatuses(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		day := s.Weather.Day()
		hourly := make(map[string][24]int64)
		for _, id := range s.Weather.Selector().CredentialIDs() {
			times, err := s.Ledger.ListCallTimes(r.Context(), id, day)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			var buckets [24]int64
			for _, t := range times {
				buckets[t.In(s.Weather.Location()).Hour()]++
			}
			hourly[id] = buckets
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"summary":            s.Weather.Stats().Snapshot(),
			"day":                day,
			"keys":               keys,
			"hourlyDistribution": hourly,
			"cache":              s.Cache.GetStats(),
		})
	}
}

// StatsKeysHandler reports per-credential quota state for the current day.
func (s *Server) StatsKeysHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := s.keyStatuses(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"day":  s.Weather.Day(),
			"keys": keys,
		})
	}
}

// StatsCacheHandler reports the cache counters.
func (s *Server) StatsCacheHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Cache.GetStats())
	}
}

// StatsPerformanceHandler reports the response-time reservoir and gauges.
func (s *Server) StatsPerformanceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := s.Weather.Stats().Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"avgResponseTimeMs": snap.AvgResponseMS,
			"minResponseTimeMs": snap.MinResponseMS,
			"maxResponseTimeMs": snap.MaxResponseMS,
			"pendingRequests":   snap.InFlight,
			"totalRequests":     snap.TotalRequests,
			"uptimeSeconds":     snap.UptimeSeconds,
		})
	}
}

// StatsExportHandler renders the stats snapshot as JSON (default) or CSV.
func (s *Server) StatsExportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "json"
		}
		keys, err := s.keyStatuses(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		switch format {
		case "json":
			writeJSON(w, http.StatusOK, map[string]any{
				"summary": s.Weather.Stats().Snapshot(),
				"day":     s.Weather.Day(),
				"keys":    keys,
			})
		case "csv":
			w.Header().Set("Content-Type", "text/csv; charset=utf-8")
			w.Header().Set("Content-Disposition", `attachment; filename="stats.csv"`)
			cw := csv.NewWriter(w)
			_ = cw.Write([]string{"credential", "day", "usage", "errors", "limit", "remaining", "available"})
			day := s.Weather.Day()
			for _, k := range keys {
				_ = cw.Write([]string{
					k.ID,
					day,
					strconv.FormatInt(k.Usage, 10),
					strconv.FormatInt(k.Errors, 10),
					strconv.FormatInt(k.Limit, 10),
					strconv.FormatInt(k.Remaining, 10),
					strconv.FormatBool(k.Available),
				})
			}
			cw.Flush()
		default:
			s.writeError(w, r, fmt.Errorf("%w: format must be json or csv", domain.ErrInvalidArgument))
		}
	}
}
