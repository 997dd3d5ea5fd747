// Package audithttp menyediakan endpoint HTTP untuk audit akses.
package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/quizroom/quizroom/internal/access"
	"github.com/quizroom/quizroom/internal/shared"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes mendaftarkan endpoint timeline, ekspor CSV, dan ingest log.
// Timeline dan ekspor dibatasi untuk super admin lewat admin.
func (h *Handler) MountRoutes(r chi.Router, admin func(http.Handler) http.Handler, token *shared.ServiceToken) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)
	r.With(token.Middleware).Post("/audit/logs", h.handleIngest)
	r.Group(func(gr chi.Router) {
		gr.Use(admin)
		gr.Get("/audit", h.handleTimeline)
		gr.With(limiter).Get("/audit/export.csv", h.handleExport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if sess := access.SessionFromContext(r.Context()); sess != nil {
		if id := sess.Actor().ID; id != "" {
			return "user:" + id, nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
