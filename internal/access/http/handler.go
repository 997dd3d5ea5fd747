package accesshttp

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quizroom/quizroom/internal/access"
	"github.com/quizroom/quizroom/internal/checks"
	"github.com/quizroom/quizroom/internal/navigation"
	"github.com/quizroom/quizroom/internal/platform/httpx"
	"github.com/quizroom/quizroom/internal/shared"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Catalog lists tenant data and counts quota usage.
type Catalog interface {
	ListQuizzes(ctx context.Context, filter checks.Filter) ([]access.Row, error)
	ListClassrooms(ctx context.Context, filter checks.Filter) ([]access.Row, error)
	Usage(ctx context.Context, tenantID string) (map[access.QuotaKind]int, error)
}

// EntitlementStore edits the external feature gate.
type EntitlementStore interface {
	Set(ctx context.Context, tenantID string, features []access.Feature) error
}

// Handler serves the session-facing access API.
type Handler struct {
	control      *access.Control
	registry     *access.Registry
	router       *navigation.Router
	catalog      Catalog
	entitlements EntitlementStore
	sessions     *shared.SessionManager
	validate     *validator.Validate
	logger       *slog.Logger
}

// HandlerConfig groups Handler dependencies. Catalog and Entitlements are
// optional; their endpoints answer 501 without them.
type HandlerConfig struct {
	Control      *access.Control
	Registry     *access.Registry
	Router       *navigation.Router
	Catalog      Catalog
	Entitlements EntitlementStore
	Sessions     *shared.SessionManager
	Logger       *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		control:      cfg.Control,
		registry:     cfg.Registry,
		router:       cfg.Router,
		catalog:      cfg.Catalog,
		entitlements: cfg.Entitlements,
		sessions:     cfg.Sessions,
		validate:     httpx.NewValidator(),
		logger:       logger,
	}
}

type decisionRequest struct {
	ResourceType string `json:"resourceType" validate:"required,max=64"`
	ResourceID   string `json:"resourceId" validate:"max=64"`
	TenantID     string `json:"tenantId" validate:"max=64"`
	Action       string `json:"action" validate:"required,max=32"`
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	sess := access.SessionFromContext(r.Context())
	actor := sess.Actor()
	d, err := sess.Engine().DecideRaw(r.Context(), &actor, req.ResourceType, req.ResourceID, req.TenantID, access.Action(req.Action))
	if err != nil {
		respondDecisionError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleNavigation(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "path is required")
		return
	}
	var actor *access.Actor
	if sess := access.SessionFromContext(r.Context()); sess != nil {
		a := sess.Actor()
		actor = &a
	}
	httpx.JSON(w, http.StatusOK, h.router.Enter(r.Context(), path, actor))
}

type planResponse struct {
	Tier     access.Tier              `json:"tier"`
	Features []access.Feature         `json:"features"`
	Quotas   access.Quotas            `json:"quotas"`
	Usage    map[access.QuotaKind]int `json:"usage,omitempty"`
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	actor := access.SessionFromContext(r.Context()).Actor()
	plan := h.control.Policy().Plan(actor.Tier)
	resp := planResponse{Tier: plan.Tier, Features: h.control.Policy().Features(actor.Tier), Quotas: plan.Quotas}
	if h.catalog != nil && actor.TenantID != "" {
		usage, err := h.catalog.Usage(r.Context(), actor.TenantID)
		if err != nil {
			h.logger.Error("load usage", slog.String("tenant_id", actor.TenantID), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		resp.Usage = usage
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type quotaRequest struct {
	Kind   access.QuotaKind `json:"kind" validate:"required,oneof=quizzes classrooms students file_size_mb"`
	Adding int              `json:"adding" validate:"gte=1"`
}

func (h *Handler) handleQuota(w http.ResponseWriter, r *http.Request) {
	var req quotaRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	actor := access.SessionFromContext(r.Context()).Actor()
	current := 0
	if req.Kind != access.QuotaFileSizeMB && h.catalog != nil {
		usage, err := h.catalog.Usage(r.Context(), actor.TenantID)
		if err != nil {
			h.logger.Error("load usage", slog.String("tenant_id", actor.TenantID), slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		current = usage[req.Kind]
	}
	if err := h.control.Policy().CheckQuota(actor.Tier, req.Kind, current, req.Adding); err != nil {
		respondDecisionError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"allowed": true})
}

func (h *Handler) handleQuizzes(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, access.ResourceQuiz, func(ctx context.Context, scope access.Scope, params url.Values, limit int) ([]access.Row, error) {
		where, args := scope.Where(params, map[string]string{
			access.ParamTenantID:    "tenant_id",
			access.ParamOwnerUserID: "owner_user_id",
			"status":                "status",
		}, 1)
		return h.catalog.ListQuizzes(ctx, checks.Filter{Where: where, Args: args, Limit: limit})
	})
}

func (h *Handler) handleClassrooms(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, access.ResourceClassroom, func(ctx context.Context, scope access.Scope, params url.Values, limit int) ([]access.Row, error) {
		if scope.Actor().Role == access.RoleStudent {
			params.Set(access.ParamUserID, scope.Actor().ID)
			where, args := scope.Where(params, map[string]string{
				access.ParamTenantID: "c.tenant_id",
				access.ParamUserID:   "m.user_id",
			}, 1)
			return h.catalog.ListClassrooms(ctx, checks.Filter{Where: where, Args: args, Limit: limit, Member: true})
		}
		where, args := scope.Where(params, map[string]string{
			access.ParamTenantID:    "tenant_id",
			access.ParamOwnerUserID: "owner_user_id",
		}, 1)
		return h.catalog.ListClassrooms(ctx, checks.Filter{Where: where, Args: args, Limit: limit})
	})
}

type listFunc func(ctx context.Context, scope access.Scope, params url.Values, limit int) ([]access.Row, error)

// list pins scope constraints on the query, loads rows and filters them again
// because the store may over-return.
func (h *Handler) list(w http.ResponseWriter, r *http.Request, rt access.ResourceType, load listFunc) {
	if h.catalog == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}
	scope := access.SessionFromContext(r.Context()).Scope()
	params := scope.BuildQuery(r.URL.Query())
	rows, err := load(r.Context(), scope, params, limit)
	if err != nil {
		h.logger.Error("list rows", slog.String("resource_type", string(rt)), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	rows = scope.FilterResults(rows, rt)
	if rows == nil {
		rows = []access.Row{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": rows})
}

func (h *Handler) handleInstallActor(w http.ResponseWriter, r *http.Request) {
	var actor access.Actor
	if err := httpx.DecodeJSON(r, &actor); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	if actor.Tier != "" {
		tier, err := access.ParseTier(string(actor.Tier))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		actor.Tier = tier
	}
	if err := actor.Validate(); err != nil {
		respondDecisionError(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "session middleware missing")
		return
	}
	sess.SetActor(actor)
	// Binding here clears the session's verification cache when the
	// provider reports a different actor or tenant.
	if h.registry != nil {
		h.registry.Session(sess.ID, actor)
	}
	h.logger.Info("actor installed",
		slog.String("actor_id", actor.ID),
		slog.String("role", string(actor.Role)),
		slog.String("tenant_id", actor.TenantID))
	httpx.JSON(w, http.StatusOK, actor)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if h.registry != nil {
			h.registry.Drop(sess.ID)
		}
		if h.sessions != nil {
			h.sessions.Destroy(sess)
		} else {
			sess.ClearActor()
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

type entitlementsRequest struct {
	Features []access.Feature `json:"features" validate:"dive,oneof=create_quizzes manage_classrooms invite_students view_analytics export_results advanced_analytics custom_branding api_access sso"`
}

func (h *Handler) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	if h.entitlements == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	var req entitlementsRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	tenantID := chi.URLParam(r, "tenantID")
	if err := h.entitlements.Set(r.Context(), tenantID, req.Features); err != nil {
		h.logger.Error("set entitlements", slog.String("tenant_id", tenantID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAnalytics returns tenant usage figures. The analytics rule decides
// which tenants the actor may read; plan gating happens in the route.
func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	sess := access.SessionFromContext(r.Context())
	actor := sess.Actor()
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		tenantID = actor.TenantID
	}
	if err := sess.Engine().Authorize(r.Context(), &actor, access.Analytics{Ref: access.Ref{ID: tenantID}}, access.ActionRead); err != nil {
		respondDecisionError(w, err)
		return
	}
	if h.catalog == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	usage, err := h.catalog.Usage(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("load usage", slog.String("tenant_id", tenantID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tenantId": tenantID, "usage": usage})
}
