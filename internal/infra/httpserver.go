package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer wraps http.Server with graceful shutdown that also drains
// registered background work, such as in-flight generation jobs, before the
// process exits.
type HTTPServer struct {
	server *http.Server
	drains []func()
}

// NewHTTPServer creates a configured HTTP server instance.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return &HTTPServer{server: srv}
}

// OnShutdown registers a drain step run during Shutdown, after the listener
// has stopped accepting connections. Steps run in registration order and are
// bounded by the shutdown context.
func (s *HTTPServer) OnShutdown(fn func()) {
	s.drains = append(s.drains, fn)
}

// Start runs the HTTP server in the current goroutine.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and runs the registered drain
// steps. A drain that outlives the context is abandoned and its error
// returned so the caller can log the unclean exit.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	for _, fn := range s.drains {
		done := make(chan struct{})
		go func(fn func()) {
			fn()
			close(done)
		}(fn)
		select {
		case <-done:
		case <-ctx.Done():
			if err == nil {
				err = ctx.Err()
			}
			return err
		}
	}
	return err
}
