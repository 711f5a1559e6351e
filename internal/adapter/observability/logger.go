package observability

import (
	"log/slog"
	"os"
	"strings"

	"github.com/fairyhunter13/openweather-proxy/internal/config"
)

// SetupLogger configures a JSON slog logger with environment fields.
// LOG_LEVEL selects the handler level; dev defaults to debug.
func SetupLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel, cfg.IsDev())}
	h := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
}

func parseLevel(s string, dev bool) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		return slog.LevelInfo
	default:
		if dev {
			return slog.LevelDebug
		}
		return slog.LevelInfo
	}
}
