package server

import (
	"log/slog"
	"net/http"

	"github.com/snipx/snipx-api/internal/auth"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing. Everything
// except health requires a bearer token.
func NewRouter(h *Handlers, authMgr *auth.Manager, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /videos", h.Upload)
	protected.HandleFunc("GET /videos", h.List)
	protected.HandleFunc("GET /videos/{id}", h.Get)
	protected.HandleFunc("POST /videos/{id}/process", h.Process)
	protected.HandleFunc("GET /videos/{id}/download", h.Download)
	protected.HandleFunc("DELETE /videos/{id}", h.Delete)
	mux.Handle("/videos", AuthMiddleware(authMgr)(protected))
	mux.Handle("/videos/", AuthMiddleware(authMgr)(protected))

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
