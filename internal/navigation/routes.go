package navigation

import (
	"context"

	"github.com/quizroom/quizroom/internal/access"
)

var (
	instructors = []access.Role{access.RoleInstructor}
	students    = []access.Role{access.RoleStudent}
	admins      = []access.Role{access.RoleSuperAdmin}
)

// DefaultRoutes registers the application's pages on r. Pattern routes are
// registered after the literal routes that share their prefix.
func DefaultRoutes(r *Router) {
	r.Register("/", Route{Name: "home", Page: "landing"})
	r.Register("/pricing", Route{Name: "pricing", Page: "pricing"})
	r.Register("/login", Route{Name: "login", Page: "login"})
	r.Register("/404", Route{Name: "not-found", Page: "not-found"})
	r.Register("/forbidden", Route{Name: "forbidden", Page: "forbidden"})
	r.Register("/checkout", Route{Name: "checkout", Page: "checkout", RequiresAuth: true})

	r.Register("/admin", Route{Name: "admin-dashboard", Page: "admin-dashboard", RequiresAuth: true, Roles: admins})
	r.Register("/admin/tenants", Route{Name: "admin-tenants", Page: "tenant-list", RequiresAuth: true, Roles: admins})
	r.Register("/admin/audit", Route{Name: "admin-audit", Page: "audit-timeline", RequiresAuth: true, Roles: admins})
	r.Register("/admin/tenants/:tenantId", Route{Name: "admin-tenant", Page: "tenant-detail", RequiresAuth: true, Roles: admins})

	r.Register("/instructor", Route{Name: "instructor-dashboard", Page: "instructor-dashboard", RequiresAuth: true, Roles: instructors})
	r.Register("/instructor/quizzes", Route{Name: "quiz-list", Page: "quiz-list", RequiresAuth: true, Roles: instructors})
	r.Register("/instructor/quizzes/new", Route{
		Name: "quiz-new", Page: "quiz-editor", RequiresAuth: true, Roles: instructors,
		Features: []access.Feature{access.FeatureCreateQuizzes},
	})
	r.Register("/instructor/quizzes/:id", Route{
		Name: "quiz-edit", Page: "quiz-editor", RequiresAuth: true, Roles: instructors,
		Features: []access.Feature{access.FeatureCreateQuizzes},
	})
	r.Register("/instructor/quizzes/:id/analytics", Route{
		Name: "quiz-analytics", Page: "quiz-analytics", RequiresAuth: true, Roles: instructors,
		Features: []access.Feature{access.FeatureViewAnalytics},
	})
	r.Register("/instructor/quizzes/:id/export", Route{
		Name: "quiz-export", Page: "quiz-export", RequiresAuth: true, Roles: instructors,
		Features: []access.Feature{access.FeatureExportResults},
	})
	r.Register("/instructor/classrooms", Route{
		Name: "classroom-list", Page: "classroom-list", RequiresAuth: true, Roles: instructors,
		Features: []access.Feature{access.FeatureManageClassrooms},
	})
	r.Register("/instructor/classrooms/:id", Route{
		Name: "classroom", Page: "classroom-detail", RequiresAuth: true, Roles: instructors,
		Features: []access.Feature{access.FeatureManageClassrooms},
	})
	r.Register("/instructor/classrooms/:id/invite", Route{
		Name: "classroom-invite", Page: "classroom-invite", RequiresAuth: true, Roles: instructors,
		Features: []access.Feature{access.FeatureInviteStudents},
	})
	r.Register("/instructor/analytics", Route{
		Name: "tenant-analytics", Page: "tenant-analytics", RequiresAuth: true, Roles: instructors,
		Features: []access.Feature{access.FeatureViewAnalytics},
	})
	r.Register("/instructor/analytics/advanced", Route{
		Name: "advanced-analytics", Page: "advanced-analytics", RequiresAuth: true, Roles: instructors,
		Features: []access.Feature{access.FeatureAdvancedAnalytics},
	})
	r.Register("/instructor/branding", Route{
		Name: "branding", Page: "branding", RequiresAuth: true, Roles: instructors,
		Features: []access.Feature{access.FeatureCustomBranding},
	})

	r.Register("/student", Route{Name: "student-dashboard", Page: "student-dashboard", RequiresAuth: true, Roles: students})
	r.Register("/student/quizzes/:id", Route{Name: "quiz-take", Page: "quiz-take", RequiresAuth: true, Roles: students})
	r.Register("/student/results/:id", Route{Name: "result", Page: "result", RequiresAuth: true, Roles: students})
	r.Register("/student/classrooms/:id", Route{Name: "student-classroom", Page: "student-classroom", RequiresAuth: true, Roles: students})
}

// ResultOwnerGuard blocks students from opening another student's result
// page. Results are keyed by the student's id.
func ResultOwnerGuard(_ context.Context, m Match, actor *access.Actor) bool {
	return actor != nil && m.Params["id"] == actor.ID
}

// DecisionGuard vetoes navigation when the session's engine denies the
// resource named by the route parameter param.
func DecisionGuard(rt access.ResourceType, param string, action access.Action) Guard {
	return func(ctx context.Context, m Match, actor *access.Actor) bool {
		sess := access.SessionFromContext(ctx)
		if sess == nil || actor == nil {
			return false
		}
		d, err := sess.Engine().DecideRaw(ctx, actor, string(rt), m.Params[param], "", action)
		return err == nil && d.Allow
	}
}

// DefaultGuards attaches the standard guards to the routes of DefaultRoutes.
func DefaultGuards(r *Router) {
	r.AddGuard("/student/results/:id", ResultOwnerGuard)
	r.AddGuard("/student/classrooms/:id", DecisionGuard(access.ResourceClassroom, "id", access.ActionRead))
	r.AddGuard("/instructor/quizzes/:id", DecisionGuard(access.ResourceQuiz, "id", access.ActionUpdate))
	r.AddGuard("/instructor/classrooms/:id", DecisionGuard(access.ResourceClassroom, "id", access.ActionRead))
}
