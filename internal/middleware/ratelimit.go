package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"thumbnailer/internal/ratelimit"
)

// RateLimit enforces the per-owner generation ceiling. It must run after
// AuthJWT so the owner id is available; a rejected request never reaches the
// handler, so no job is created.
func RateLimit(limiter ratelimit.Limiter, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID := UserIDFromContext(r.Context())
			if ownerID == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "missing user context")
				return
			}
			res, err := limiter.Allow(r.Context(), ownerID)
			if err != nil {
				// A broken counter backend should not take generation down.
				logger.Error().Err(err).Str("owner_id", ownerID).Msg("rate limiter unavailable, admitting request")
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":       "rate_limit_exceeded",
					"message":    "rate limit exceeded, please try again later",
					"reset_time": res.ResetAt.UTC().Format(time.RFC3339),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
