package checkshttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quizroom/quizroom/internal/access"
	"github.com/quizroom/quizroom/internal/checks"
	"github.com/quizroom/quizroom/internal/platform/httpx"
)

// Service is the checks contract used by the handler.
type Service interface {
	Check(ctx context.Context, kind access.Kind, req checks.Request) (bool, error)
	AddMember(ctx context.Context, change checks.MembershipChange) (bool, error)
	RemoveMember(ctx context.Context, change checks.MembershipChange) (bool, error)
	Members(ctx context.Context, tenantID, classroomID string) ([]checks.Member, error)
}

// Handler serves the access-check endpoints.
type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, validate: httpx.NewValidator(), logger: logger}
}

type membershipRequest struct {
	TenantID  string `json:"tenantId" validate:"required,max=64"`
	ChangedBy string `json:"changedBy" validate:"omitempty,max=64"`
}

type membershipResponse struct {
	Changed bool `json:"changed"`
}

func (h *Handler) handleCheck(kind access.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checks.Request
		if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
			httpx.RespondValidation(w, err)
			return
		}
		ok, err := h.service.Check(r.Context(), kind, req)
		if err != nil {
			h.logger.Error("access check failed",
				slog.String("kind", string(kind)),
				slog.String("tenant_id", req.TenantID),
				slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Check Failed", "access check could not be completed")
			return
		}
		httpx.JSON(w, http.StatusOK, checks.Response{HasAccess: ok})
	}
}

func (h *Handler) handleMembers(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tenantId is required")
		return
	}
	members, err := h.service.Members(r.Context(), tenantID, chi.URLParam(r, "classroomID"))
	if err != nil {
		h.respondError(w, "list members", err)
		return
	}
	if members == nil {
		members = []checks.Member{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *Handler) handleMembership(add bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req membershipRequest
		if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
			httpx.RespondValidation(w, err)
			return
		}
		change := checks.MembershipChange{
			TenantID:    req.TenantID,
			ClassroomID: chi.URLParam(r, "classroomID"),
			StudentID:   chi.URLParam(r, "userID"),
			ChangedBy:   req.ChangedBy,
		}
		var (
			changed bool
			err     error
		)
		if add {
			changed, err = h.service.AddMember(r.Context(), change)
		} else {
			changed, err = h.service.RemoveMember(r.Context(), change)
		}
		if err != nil {
			h.respondError(w, "change membership", err)
			return
		}
		httpx.JSON(w, http.StatusOK, membershipResponse{Changed: changed})
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, checks.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "classroom not found")
	case errors.Is(err, checks.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "classroom belongs to another instructor")
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
