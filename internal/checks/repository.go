package checks

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quizroom/quizroom/internal/access"
	"github.com/quizroom/quizroom/internal/platform/db"
)

// Repository answers checks from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, "SELECT EXISTS ("+query+")", args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// QuizOwned reports whether userID owns quizID in tenantID.
func (r *Repository) QuizOwned(ctx context.Context, tenantID, quizID, userID string) (bool, error) {
	return r.exists(ctx, `
		SELECT 1 FROM quizzes
		WHERE id = $1 AND tenant_id = $2 AND owner_user_id = $3`, quizID, tenantID, userID)
}

// ClassroomOwned reports whether userID owns classroomID in tenantID.
func (r *Repository) ClassroomOwned(ctx context.Context, tenantID, classroomID, userID string) (bool, error) {
	return r.exists(ctx, `
		SELECT 1 FROM classrooms
		WHERE id = $1 AND tenant_id = $2 AND owner_user_id = $3`, classroomID, tenantID, userID)
}

// StudentTaught reports whether studentID sits in a classroom owned by
// instructorID in tenantID.
func (r *Repository) StudentTaught(ctx context.Context, tenantID, studentID, instructorID string) (bool, error) {
	return r.exists(ctx, `
		SELECT 1 FROM classroom_members m
		JOIN classrooms c ON c.id = m.classroom_id AND c.tenant_id = m.tenant_id
		WHERE m.user_id = $1 AND m.tenant_id = $2 AND c.owner_user_id = $3`, studentID, tenantID, instructorID)
}

// IsMember reports whether userID belongs to classroomID in tenantID.
func (r *Repository) IsMember(ctx context.Context, tenantID, classroomID, userID string) (bool, error) {
	return r.exists(ctx, `
		SELECT 1 FROM classroom_members
		WHERE classroom_id = $1 AND tenant_id = $2 AND user_id = $3`, classroomID, tenantID, userID)
}

// AddMember enrols the student. It reports false when the student was
// already enrolled.
func (r *Repository) AddMember(ctx context.Context, change MembershipChange) (bool, error) {
	return r.inClassroomTx(ctx, change, func(tx pgx.Tx) (bool, error) {
		tag, err := tx.Exec(ctx, `
			INSERT INTO classroom_members (tenant_id, classroom_id, user_id, added_by)
			VALUES ($1, $2, $3, $4)`,
			change.TenantID, change.ClassroomID, change.StudentID, change.ChangedBy)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return false, nil
			}
			return false, err
		}
		return tag.RowsAffected() > 0, nil
	})
}

// RemoveMember removes the student. It reports false when nothing was removed.
func (r *Repository) RemoveMember(ctx context.Context, change MembershipChange) (bool, error) {
	return r.inClassroomTx(ctx, change, func(tx pgx.Tx) (bool, error) {
		tag, err := tx.Exec(ctx, `
			DELETE FROM classroom_members
			WHERE tenant_id = $1 AND classroom_id = $2 AND user_id = $3`,
			change.TenantID, change.ClassroomID, change.StudentID)
		if err != nil {
			return false, err
		}
		return tag.RowsAffected() > 0, nil
	})
}

// Members lists the classroom's members.
func (r *Repository) Members(ctx context.Context, tenantID, classroomID string) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tenant_id, classroom_id, user_id, joined_at
		FROM classroom_members
		WHERE tenant_id = $1 AND classroom_id = $2
		ORDER BY joined_at, user_id`, tenantID, classroomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.TenantID, &m.ClassroomID, &m.UserID, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// inClassroomTx locks the classroom row, checks the writer owns it unless it
// is a super_admin write, and runs fn in the same transaction.
func (r *Repository) inClassroomTx(ctx context.Context, change MembershipChange, fn func(pgx.Tx) (bool, error)) (bool, error) {
	var changed bool
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var owner string
		err := tx.QueryRow(ctx, `
			SELECT owner_user_id FROM classrooms
			WHERE id = $1 AND tenant_id = $2
			FOR UPDATE`, change.ClassroomID, change.TenantID).Scan(&owner)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("checks: lock classroom: %w", err)
		}
		if change.ChangedBy != "" && owner != change.ChangedBy {
			return ErrForbidden
		}
		changed, err = fn(tx)
		return err
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// ListQuizzes returns quiz rows matching the scoped filter.
func (r *Repository) ListQuizzes(ctx context.Context, filter Filter) ([]access.Row, error) {
	return r.list(ctx, `
		SELECT id, tenant_id, owner_user_id, title, status, created_at
		FROM quizzes`, filter, "created_at DESC, id")
}

// ListClassrooms returns classroom rows matching the scoped filter. Students
// see their memberships, which carry user_id.
func (r *Repository) ListClassrooms(ctx context.Context, filter Filter) ([]access.Row, error) {
	if filter.Member {
		return r.list(ctx, `
			SELECT c.id, c.tenant_id, c.owner_user_id, c.name, m.user_id, c.created_at
			FROM classrooms c
			JOIN classroom_members m ON m.classroom_id = c.id AND m.tenant_id = c.tenant_id`, filter, "c.name, c.id")
	}
	return r.list(ctx, `
		SELECT id, tenant_id, owner_user_id, name, created_at
		FROM classrooms`, filter, "name, id")
}

func (r *Repository) list(ctx context.Context, base string, filter Filter, order string) ([]access.Row, error) {
	query := base
	if filter.Where != "" {
		query += " WHERE " + filter.Where
	}
	query += " ORDER BY " + order
	args := filter.Args
	if filter.Limit > 0 {
		args = append(append([]any(nil), args...), filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	out := make([]access.Row, len(maps))
	for i, m := range maps {
		out[i] = access.Row(m)
	}
	return out, nil
}

// Usage counts the tenant's quota-bound resources.
func (r *Repository) Usage(ctx context.Context, tenantID string) (map[access.QuotaKind]int, error) {
	var quizzes, classrooms, students int
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM quizzes WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM classrooms WHERE tenant_id = $1),
			(SELECT COUNT(DISTINCT user_id) FROM classroom_members WHERE tenant_id = $1)`, tenantID).
		Scan(&quizzes, &classrooms, &students)
	if err != nil {
		return nil, err
	}
	return map[access.QuotaKind]int{
		access.QuotaQuizzes:    quizzes,
		access.QuotaClassrooms: classrooms,
		access.QuotaStudents:   students,
	}, nil
}
