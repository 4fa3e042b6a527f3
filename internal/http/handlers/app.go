// Package handlers implements the HTTP API surface: thin request validation
// and routing in front of the job store and the generation orchestrator.
package handlers

import (
	"encoding/json"
	"net/http"

	"thumbnailer/internal/domain"
	"thumbnailer/internal/infra"
	"thumbnailer/internal/middleware"
	"thumbnailer/internal/orchestrator"
)

// App is the handler container holding injected dependencies.
type App struct {
	Repo       domain.ThumbnailRepository
	Orch       *orchestrator.Orchestrator
	Dispatcher *orchestrator.Dispatcher
	Logger     infra.Logger
}

// NewApp wires the handler container.
func NewApp(repo domain.ThumbnailRepository, orch *orchestrator.Orchestrator, dispatcher *orchestrator.Dispatcher, logger infra.Logger) *App {
	return &App{Repo: repo, Orch: orch, Dispatcher: dispatcher, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"code": code, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
