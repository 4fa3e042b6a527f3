package handlers

import "net/http"

// Health reports liveness and the configured provider chain order.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": a.Orch.AdapterIDs(),
	})
}
