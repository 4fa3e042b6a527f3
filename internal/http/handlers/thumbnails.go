package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"thumbnailer/internal/domain"
	"thumbnailer/internal/orchestrator"
)

type generateRequest struct {
	Title       string `json:"title"`
	Style       string `json:"style"`
	ColorScheme string `json:"color_scheme"`
	AspectRatio string `json:"aspect_ratio"`
	Prompt      string `json:"prompt"`
	TextOverlay bool   `json:"text_overlay"`
}

type thumbnailResponse struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Style          string `json:"style"`
	ColorScheme    string `json:"color_scheme,omitempty"`
	AspectRatio    string `json:"aspect_ratio"`
	UserPrompt     string `json:"prompt,omitempty"`
	TextOverlay    bool   `json:"text_overlay"`
	ComposedPrompt string `json:"composed_prompt,omitempty"`
	Status         string `json:"status"`
	ImageURL       string `json:"image_url,omitempty"`
	Provider       string `json:"provider,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toResponse(t *domain.Thumbnail) thumbnailResponse {
	return thumbnailResponse{
		ID:             t.ID,
		Title:          t.Title,
		Style:          string(t.Style),
		ColorScheme:    string(t.ColorScheme),
		AspectRatio:    string(t.AspectRatio),
		UserPrompt:     t.UserPrompt,
		TextOverlay:    t.TextOverlay,
		ComposedPrompt: t.ComposedPrompt,
		Status:         string(t.Status),
		ImageURL:       t.ImageURL,
		Provider:       t.Provider,
		ErrorMessage:   t.ErrorMessage,
		CreatedAt:      t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Generate validates the request, creates the job, moves it to generating
// and hands it to the dispatcher. The response returns before any provider
// call completes; clients poll Get for the terminal state.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.Style) == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "title and style are required fields")
		return
	}
	style := domain.Style(strings.TrimSpace(req.Style))
	if !style.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported style")
		return
	}
	scheme := domain.ColorScheme(strings.TrimSpace(req.ColorScheme))
	if !scheme.Valid() {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported color scheme")
		return
	}

	thumb := &domain.Thumbnail{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Title:       req.Title,
		Style:       style,
		ColorScheme: scheme,
		AspectRatio: domain.NormalizeAspectRatio(req.AspectRatio),
		UserPrompt:  strings.TrimSpace(req.Prompt),
		TextOverlay: req.TextOverlay,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.Repo.Create(r.Context(), thumb); err != nil {
		a.Logger.Error().Err(err).Msg("create job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}
	if err := a.Orch.Prepare(r.Context(), thumb); err != nil {
		a.Logger.Error().Err(err).Str("job_id", thumb.ID).Msg("prepare job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to start generation")
		return
	}

	// Snapshot the response before dispatch: the worker pool owns the job
	// struct it receives and mutates it as the chain runs, so the handler
	// must not touch that copy again.
	resp := toResponse(thumb)
	queued := *thumb
	if err := a.Dispatcher.Enqueue(&queued); err != nil {
		if errors.Is(err, orchestrator.ErrQueueFull) {
			// Hand the job back to the queue for the worker binary instead of
			// leaving it in generating with nobody processing it.
			if rqErr := a.Repo.Requeue(r.Context(), thumb.ID); rqErr != nil {
				a.Logger.Error().Err(rqErr).Str("job_id", thumb.ID).Msg("requeue after full dispatch queue failed")
			} else {
				resp.Status = string(domain.StatusPending)
			}
		} else {
			a.Logger.Error().Err(err).Str("job_id", thumb.ID).Msg("dispatch failed")
		}
	}

	a.json(w, http.StatusAccepted, resp)
}

// List returns every job owned by the caller, newest first.
func (a *App) List(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	thumbs, err := a.Repo.ListByOwner(r.Context(), ownerID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("list jobs failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list thumbnails")
		return
	}
	items := make([]thumbnailResponse, 0, len(thumbs))
	for i := range thumbs {
		items = append(items, toResponse(&thumbs[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"thumbnails": items})
}

// Get returns one job for status polling.
func (a *App) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	thumb, err := a.Repo.GetByID(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "thumbnail not found")
			return
		}
		a.Logger.Error().Err(err).Msg("get job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load thumbnail")
		return
	}
	a.json(w, http.StatusOK, toResponse(thumb))
}

// Delete removes one job owned by the caller.
func (a *App) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Repo.Delete(r.Context(), chi.URLParam(r, "id"), ownerID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "thumbnail not found")
			return
		}
		a.Logger.Error().Err(err).Msg("delete job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete thumbnail")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "thumbnail deleted"})
}

// Download redirects to the published asset of a completed job.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentUserID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	thumb, err := a.Repo.GetByID(r.Context(), chi.URLParam(r, "id"), ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "thumbnail not found")
			return
		}
		a.Logger.Error().Err(err).Msg("get job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load thumbnail")
		return
	}
	if thumb.Status != domain.StatusCompleted || thumb.ImageURL == "" {
		a.error(w, http.StatusConflict, "not_ready", "thumbnail is not completed")
		return
	}
	http.Redirect(w, r, thumb.ImageURL, http.StatusFound)
}
