package usecase

import (
	"log/slog"

	"github.com/fairyhunter13/openweather-proxy/internal/domain"
)

// MaxWarmupLocations bounds one warmup batch.
const MaxWarmupLocations = 100

// WarmupResult reports the outcome of pre-fetching one location.
type WarmupResult struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
}

// Warmup pre-populates the cache by running each location through the normal
// pipeline, so warmup traffic is charged against quotas like any other
// request. Failures are reported per location and do not stop the batch.
func (s *WeatherService) Warmup(ctx domain.Context, locations []domain.WeatherQuery) []WarmupResult {
	out := make([]WarmupResult, 0, len(locations))
	for _, q := range locations {
		res := WarmupResult{Lat: q.Lat, Lon: q.Lon, Success: true}
		if _, err := s.GetWeather(ctx, q); err != nil {
			res.Success = false
			res.Error = err.Error()
		}
		out = append(out, res)
		if ctx.Err() != nil {
			break
		}
	}
	slog.Info("cache warmup finished",
		slog.Int("requested", len(locations)),
		slog.Int("completed", len(out)))
	return out
}
