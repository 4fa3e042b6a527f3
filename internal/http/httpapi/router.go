// Package httpapi assembles the chi router: middleware stack, API routes and
// the optional static file server for locally published assets.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"thumbnailer/internal/http/handlers"
	"thumbnailer/internal/infra"
	"thumbnailer/internal/middleware"
	"thumbnailer/internal/ratelimit"
)

// Options carries everything the router needs beyond the handler container.
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	Limiter        ratelimit.Limiter
	// StaticDir serves published assets from disk when the filesystem
	// publisher is active. Empty disables the route.
	StaticDir string
	Logger    infra.Logger
}

// NewRouter wires the middleware chain and routes.
func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Get("/healthz", app.Health)

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.With(middleware.RateLimit(opts.Limiter, opts.Logger)).Post("/generate", app.Generate)
		r.Get("/generations", app.List)
		r.Get("/generations/{id}", app.Get)
		r.Delete("/generations/{id}", app.Delete)
		r.Get("/generations/{id}/download", app.Download)
	})

	return r
}
