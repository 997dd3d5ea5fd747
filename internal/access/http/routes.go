// Package accesshttp exposes access decisions, navigation and plan data to
// signed-in sessions.
package accesshttp

import (
	"github.com/go-chi/chi/v5"

	"github.com/quizroom/quizroom/internal/access"
	"github.com/quizroom/quizroom/internal/shared"
)

// MountRoutes registers the /api endpoints. The Load middleware must already
// be installed on r.
func (h *Handler) MountRoutes(r chi.Router, mw Middleware, token *shared.ServiceToken) {
	if h == nil {
		return
	}
	r.Route("/api", func(api chi.Router) {
		api.Get("/navigation", h.handleNavigation)
		api.With(token.Middleware).Post("/session", h.handleInstallActor)
		api.Delete("/session", h.handleLogout)

		api.Group(func(gr chi.Router) {
			gr.Use(mw.RequireActor)
			gr.Post("/decisions", h.handleDecision)
			gr.Get("/plan", h.handlePlan)
			gr.Post("/plan/quota", h.handleQuota)
			gr.Get("/classrooms", h.handleClassrooms)
			gr.With(mw.RequireRole(access.RoleSuperAdmin, access.RoleInstructor)).Get("/quizzes", h.handleQuizzes)
			gr.With(mw.RequireFeatures(access.FeatureViewAnalytics)).Get("/analytics", h.handleAnalytics)
		})

		api.With(mw.RequireRole(access.RoleSuperAdmin)).Put("/admin/tenants/{tenantID}/features", h.handleEntitlements)
	})
}
