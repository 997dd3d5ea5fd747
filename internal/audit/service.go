// Package audit menyimpan dan menampilkan log keputusan akses.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/quizroom/quizroom/internal/access"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// Repository menyediakan akses ke tabel access_audit_logs.
type Repository interface {
	Insert(ctx context.Context, entry access.AuditEntry) error
	TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
	TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service mengoordinasikan pencatatan dan pengambilan data audit.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService membuat service audit baru.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Write menyimpan satu entri audit.
func (s *Service) Write(ctx context.Context, entry access.AuditEntry) error {
	if s.repo == nil {
		return fmt.Errorf("audit: repository not configured")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now().UTC()
	}
	if entry.Result != access.AuditSuccess && entry.Result != access.AuditDenied {
		return fmt.Errorf("audit: invalid result %q", entry.Result)
	}
	return s.repo.Insert(ctx, entry)
}

// Timeline mengambil data audit dengan paging.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize
	rows, err := s.repo.TimelineWindow(ctx, filters, offset, pageSize+1)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export mengambil seluruh data timeline tanpa paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.TimelineAll(ctx, filters)
}

// Prune menghapus entri yang lebih tua dari retention.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("audit: repository not configured")
	}
	if retention <= 0 {
		return 0, fmt.Errorf("audit: retention must be positive")
	}
	return s.repo.PruneBefore(ctx, s.now().Add(-retention))
}
