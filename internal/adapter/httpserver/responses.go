package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fairyhunter13/openweather-proxy/internal/domain"
)

// errorEnvelope is the terminal failure shape. Every error response carries a
// stable request identifier for correlation.
type errorEnvelope struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"requestId"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeUpstreamBody relays a successful upstream response verbatim.
func writeUpstreamBody(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// writeError maps domain errors to status codes. Upstream HTTP errors stay
// transparent: original status and body pass through unchanged.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ue *domain.UpstreamError
	if errors.As(err, &ue) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(ue.Status)
		_, _ = w.Write(ue.Body)
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrNoCredentials):
		// Quota state resets at the next midnight in the DayKey zone.
		status = http.StatusTooManyRequests
		retryAfter := time.Until(domain.NextMidnight(time.Now(), s.Weather.Location()))
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	case errors.Is(err, domain.ErrUpstreamUnavailable), errors.Is(err, domain.ErrLedgerUnavailable):
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, errorEnvelope{
		Success:   false,
		Error:     err.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: r.Header.Get("X-Request-Id"),
	})
}
