// Package httpserver contains HTTP handlers and middleware.
//
// It exposes the client-facing One Call proxy endpoint, the cache and stats
// administration surface, and the health probes. HTTP concerns stay here;
// pipeline semantics live in internal/usecase.
package httpserver

import (
	"context"
	"time"

	"github.com/fairyhunter13/openweather-proxy/internal/cache"
	"github.com/fairyhunter13/openweather-proxy/internal/config"
	"github.com/fairyhunter13/openweather-proxy/internal/domain"
	"github.com/fairyhunter13/openweather-proxy/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg         config.Config
	Weather     *usecase.WeatherService
	Cache       *cache.ResultCache
	Ledger      domain.Ledger
	LedgerCheck func(ctx context.Context) error
	Version     string
	StartedAt   time.Time
}

// NewServer constructs the HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, weather *usecase.WeatherService, rc *cache.ResultCache, ledger domain.Ledger, ledgerCheck func(ctx context.Context) error, version string) *Server {
	return &Server{
		Cfg:         cfg,
		Weather:     weather,
		Cache:       rc,
		Ledger:      ledger,
		LedgerCheck: ledgerCheck,
		Version:     version,
		StartedAt:   time.Now(),
	}
}
