package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/coinboard/internal/adapters/http/swagger"
)

const requestTimeout = 15 * time.Second

// NewRouter returns a chi router with the default middleware, the API routes
// and the API docs.
func NewRouter(ctx context.Context, s *Server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(timeoutExceptUpgrades(requestTimeout))

	s.Register(ctx, r)
	swagger.Register(ctx, r)
	return r
}

// timeoutExceptUpgrades applies chi's request timeout to everything except
// websocket upgrades, which outlive any request deadline.
func timeoutExceptUpgrades(d time.Duration) func(http.Handler) http.Handler {
	timeout := middleware.Timeout(d)
	return func(next http.Handler) http.Handler {
		limited := timeout(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") != "" {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}
