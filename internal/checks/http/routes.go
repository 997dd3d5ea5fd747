// Package checkshttp exposes the access-check service over HTTP.
package checkshttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/quizroom/quizroom/internal/access"
	"github.com/quizroom/quizroom/internal/shared"
)

const (
	rateLimit  = 600
	rateWindow = time.Minute
)

// MountRoutes registers the /access endpoints behind the service token.
func (h *Handler) MountRoutes(r chi.Router, token *shared.ServiceToken) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.Route("/access", func(ar chi.Router) {
		ar.Use(limiter, token.Middleware)
		for _, kind := range access.Kinds() {
			ar.Post("/"+string(kind), h.handleCheck(kind))
		}
		ar.Get("/classrooms/{classroomID}/members", h.handleMembers)
		ar.Put("/classrooms/{classroomID}/members/{userID}", h.handleMembership(true))
		ar.Delete("/classrooms/{classroomID}/members/{userID}", h.handleMembership(false))
	})
}
