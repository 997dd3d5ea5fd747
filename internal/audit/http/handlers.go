package audithttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quizroom/quizroom/internal/access"
	"github.com/quizroom/quizroom/internal/audit"
	"github.com/quizroom/quizroom/internal/platform/httpx"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 50
	defaultDateRange  = 7 * 24 * time.Hour
	maxDateRangeHours = 24 * 90
)

// TimelineService mendefinisikan kontrak bisnis untuk data timeline.
type TimelineService interface {
	Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error)
	Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error)
	Write(ctx context.Context, entry access.AuditEntry) error
}

// Exporter menulis ekspor timeline.
type Exporter interface {
	WriteCSV(rows []audit.TimelineRow) ([]byte, error)
}

// Handler menangani permintaan audit timeline dan ingest log.
type Handler struct {
	logger   *slog.Logger
	service  TimelineService
	exporter Exporter
	validate *validator.Validate
	now      func() time.Time
}

// NewHandler membuat handler audit baru.
func NewHandler(logger *slog.Logger, service TimelineService, exporter Exporter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		exporter: exporter,
		validate: httpx.NewValidator(),
		now:      time.Now,
	}
}

type ingestRequest struct {
	UserID       string    `json:"user_id" validate:"max=128"`
	TenantID     string    `json:"tenant_id" validate:"max=128"`
	ResourceType string    `json:"resource_type" validate:"required,max=128"`
	ResourceID   string    `json:"resource_id" validate:"max=128"`
	Action       string    `json:"action" validate:"required,max=32"`
	Result       string    `json:"result" validate:"required,oneof=success denied"`
	Timestamp    time.Time `json:"timestamp"`
	UserAgent    string    `json:"user_agent" validate:"max=512"`
	Reason       string    `json:"reason" validate:"max=256"`
}

func (h *Handler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "load audit timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	filters, err := h.parseFilters(r)
	if err != nil {
		h.handleFilterError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.handleServerError(w, "export audit timeline", err)
		return
	}
	csvBytes, err := h.exporter.WriteCSV(rows)
	if err != nil {
		h.handleServerError(w, "encode csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"access-audit.csv\"")
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, http.StatusText(http.StatusNotImplemented), http.StatusNotImplemented)
		return
	}
	var req ingestRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		httpx.RespondValidation(w, err)
		return
	}
	entry := access.AuditEntry{
		UserID:       req.UserID,
		TenantID:     req.TenantID,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Action:       req.Action,
		Result:       access.AuditResult(req.Result),
		Timestamp:    req.Timestamp,
		UserAgent:    req.UserAgent,
		Reason:       req.Reason,
	}
	if err := h.service.Write(r.Context(), entry); err != nil {
		h.handleServerError(w, "store audit entry", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) parseFilters(r *http.Request) (audit.TimelineFilters, error) {
	q := r.URL.Query()
	now := h.now().UTC()
	toStr := strings.TrimSpace(q.Get("to"))
	if toStr == "" {
		toStr = now.Format("2006-01-02")
	}
	toTime, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return audit.TimelineFilters{}, validationError{field: "to"}
	}
	fromStr := strings.TrimSpace(q.Get("from"))
	if fromStr == "" {
		fromStr = toTime.Add(-defaultDateRange).Format("2006-01-02")
	}
	fromTime, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return audit.TimelineFilters{}, validationError{field: "from"}
	}
	if fromTime.After(toTime) {
		return audit.TimelineFilters{}, validationError{field: "range"}
	}
	if toTime.Sub(fromTime) > maxDateRangeHours*time.Hour {
		return audit.TimelineFilters{}, validationError{field: "range"}
	}
	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, validationError{field: "page"}
		}
		page = parsed
	}
	pageSize := defaultPageSize
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return audit.TimelineFilters{}, validationError{field: "page_size"}
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		pageSize = parsed
	}
	result := strings.TrimSpace(q.Get("result"))
	if result != "" && result != string(access.AuditSuccess) && result != string(access.AuditDenied) {
		return audit.TimelineFilters{}, validationError{field: "result"}
	}

	// "to" inklusif sampai akhir hari.
	return audit.TimelineFilters{
		From:         fromTime,
		To:           toTime.Add(24 * time.Hour),
		Actor:        strings.TrimSpace(q.Get("actor")),
		TenantID:     strings.TrimSpace(q.Get("tenant")),
		ResourceType: strings.TrimSpace(q.Get("resource_type")),
		Action:       strings.TrimSpace(q.Get("action")),
		Result:       result,
		Page:         page,
		PageSize:     pageSize,
	}, nil
}

func (h *Handler) handleFilterError(w http.ResponseWriter, err error) {
	var v validationError
	if errors.As(err, &v) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid filter: "+v.field)
		return
	}
	h.handleServerError(w, "validate filters", err)
}

func (h *Handler) handleServerError(w http.ResponseWriter, message string, err error) {
	if h.logger != nil {
		h.logger.Error(message, slog.Any("error", err))
	}
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

type validationError struct {
	field string
}

func (validationError) Error() string {
	return "validation failed"
}
