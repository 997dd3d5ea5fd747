package accesshttp

import (
	"log/slog"
	"net/http"

	"github.com/quizroom/quizroom/internal/access"
	"github.com/quizroom/quizroom/internal/platform/httpx"
	"github.com/quizroom/quizroom/internal/shared"
)

// Middleware binds the cookie session's actor to an access session and
// gates handlers on it.
type Middleware struct {
	Registry *access.Registry
	Features access.FeatureChecker
	Logger   *slog.Logger
}

// Load attaches the access session for the request's actor, if any, and the
// caller's user agent for audit entries.
func (m Middleware) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := access.WithUserAgent(r.Context(), r.UserAgent())
		if sess := shared.SessionFromContext(ctx); sess != nil && m.Registry != nil {
			if actor, ok := sess.Actor(); ok {
				ctx = access.WithSession(ctx, m.Registry.Session(sess.ID, actor))
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActor rejects requests without a valid actor.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := access.SessionFromContext(r.Context())
		if sess == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
			return
		}
		actor := sess.Actor()
		if err := actor.Validate(); err != nil {
			respondDecisionError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures the current actor holds one of roles.
func (m Middleware) RequireRole(roles ...access.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := access.SessionFromContext(r.Context()).Actor().Role
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "your role cannot use this endpoint")
		}))
	}
}

// RequireFeatures ensures the current actor's plan grants every feature.
func (m Middleware) RequireFeatures(features ...access.Feature) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := access.SessionFromContext(r.Context()).Actor()
			if actor.Role == access.RoleSuperAdmin || m.Features == nil {
				next.ServeHTTP(w, r)
				return
			}
			ok, err := m.Features.HasFeatures(r.Context(), actor, features...)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("feature check", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !ok {
				httpx.Problem(w, http.StatusForbidden, "Upgrade Required", "your plan does not include this feature")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
