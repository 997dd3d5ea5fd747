package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizroom/quizroom/internal/access"
)

// PGRepository menyimpan log audit di PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository membuat repository audit berbasis pgx.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert menulis satu entri.
func (r *PGRepository) Insert(ctx context.Context, e access.AuditEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_audit_logs
			(user_id, tenant_id, resource_type, resource_id, action, result, user_agent, reason, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.UserID, e.TenantID, e.ResourceType, e.ResourceID, e.Action, string(e.Result),
		e.UserAgent, optionalText(e.Reason), e.Timestamp)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// TimelineWindow mengambil satu halaman timeline, terbaru lebih dulu.
func (r *PGRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	where, args := timelineWhere(filters)
	args = append(args, offset, limit)
	query := fmt.Sprintf(`%s %s ORDER BY at DESC, id DESC OFFSET $%d LIMIT $%d`, selectTimeline, where, len(args)-1, len(args))
	return r.query(ctx, query, args...)
}

// TimelineAll mengambil seluruh timeline yang cocok dengan filter.
func (r *PGRepository) TimelineAll(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	where, args := timelineWhere(filters)
	return r.query(ctx, selectTimeline+" "+where+" ORDER BY at DESC, id DESC", args...)
}

// PruneBefore menghapus entri sebelum cutoff.
func (r *PGRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM access_audit_logs WHERE at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}

const selectTimeline = `
	SELECT at, user_id, tenant_id, resource_type, resource_id, action, result, user_agent, reason
	FROM access_audit_logs`

func (r *PGRepository) query(ctx context.Context, query string, args ...any) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var (
			out    TimelineRow
			at     pgtype.Timestamptz
			reason pgtype.Text
		)
		err := row.Scan(&at, &out.UserID, &out.TenantID, &out.ResourceType, &out.ResourceID,
			&out.Action, &out.Result, &out.UserAgent, &reason)
		if at.Valid {
			out.At = at.Time
		}
		if reason.Valid {
			out.Reason = reason.String
		}
		return out, err
	})
}

// timelineWhere membangun klausa WHERE dari filter yang terisi.
func timelineWhere(f TimelineFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if ts := toPgTime(f.From); ts.Valid {
		add("at >= $%d", ts)
	}
	if ts := toPgTime(f.To); ts.Valid {
		add("at < $%d", ts)
	}
	if v := optionalText(f.Actor); v.Valid {
		add("user_id = $%d", v)
	}
	if v := optionalText(f.TenantID); v.Valid {
		add("tenant_id = $%d", v)
	}
	if v := optionalText(f.ResourceType); v.Valid {
		add("resource_type = $%d", v)
	}
	if v := optionalText(f.Action); v.Valid {
		add("action = $%d", v)
	}
	if v := optionalText(f.Result); v.Valid {
		add("result = $%d", v)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
