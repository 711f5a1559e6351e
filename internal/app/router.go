package app

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpserver "github.com/fairyhunter13/openweather-proxy/internal/adapter/httpserver"
	"github.com/fairyhunter13/openweather-proxy/internal/adapter/observability"
	"github.com/fairyhunter13/openweather-proxy/internal/config"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming
// spaces. If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSOrigin),
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Client-facing endpoint: per-IP rate limit plus app identifier check.
	r.Group(func(wr chi.Router) {
		wr.Use(httprate.LimitByIP(cfg.RateLimitMax, cfg.RateLimitWindow()))
		wr.Use(srv.AppIDGuard())
		wr.Get("/data/3.0/onecall", srv.OneCallHandler())
	})

	// Cache administration
	r.Delete("/data/3.0/cache", srv.CacheClearHandler())
	r.Post("/data/3.0/cache/warmup", srv.CacheWarmupHandler())
	r.Get("/data/3.0/cache/info", srv.CacheInfoHandler())

	// Stats
	r.Get("/stats", srv.StatsHandler())
	r.Get("/stats/detailed", srv.StatsDetailedHandler())
	r.Get("/stats/keys", srv.StatsKeysHandler())
	r.Get("/stats/cache", srv.StatsCacheHandler())
	r.Get("/stats/performance", srv.StatsPerformanceHandler())
	r.Get("/stats/export", srv.StatsExportHandler())

	// Health and metrics
	r.Get("/health", srv.HealthHandler())
	r.Get("/health/detailed", srv.HealthDetailedHandler())
	r.Get("/ready", srv.ReadyHandler())
	r.Get("/live", srv.LiveHandler())
	r.Get("/uptime", srv.UptimeHandler())
	r.Get("/version", srv.VersionHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	return httpserver.SecurityHeaders(r)
}
