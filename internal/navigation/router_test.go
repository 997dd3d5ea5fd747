package navigation

import (
	"context"
	"testing"

	"github.com/quizroom/quizroom/internal/access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spyFeatures struct {
	calls   int
	granted bool
}

func (s *spyFeatures) HasFeatures(context.Context, access.Actor, ...access.Feature) (bool, error) {
	s.calls++
	return s.granted, nil
}

func TestResolvePatternCapturesParams(t *testing.T) {
	r := NewRouter(nil, nil)
	r.Register("/instructor/quizzes/:id", Route{Name: "quiz"})

	m, ok := r.Resolve("/instructor/quizzes/abc")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"id": "abc"}, m.Params)
	assert.Equal(t, "/instructor/quizzes/:id", m.Pattern)

	_, ok = r.Resolve("/instructor/quizzes/abc/analytics")
	assert.False(t, ok)
	_, ok = r.Resolve("/instructor/quizzes")
	assert.False(t, ok)
}

func TestResolveExactBeforePattern(t *testing.T) {
	r := NewRouter(nil, nil)
	r.Register("/instructor/quizzes/:id", Route{Name: "edit"})
	r.Register("/instructor/quizzes/new", Route{Name: "new"})

	m, ok := r.Resolve("/instructor/quizzes/new/")
	require.True(t, ok)
	assert.Equal(t, "new", m.Route.Name)
	assert.Empty(t, m.Params)
}

func TestResolveFirstPatternWins(t *testing.T) {
	r := NewRouter(nil, nil)
	r.Register("/c/:a/x", Route{Name: "first"})
	r.Register("/c/:b/:c", Route{Name: "second"})
	r.Register("/c/y/x", Route{Name: "exact"})

	m, ok := r.Resolve("/c/z/x")
	require.True(t, ok)
	assert.Equal(t, "first", m.Route.Name)

	m, ok = r.Resolve("/c/z/q?tab=1")
	require.True(t, ok)
	assert.Equal(t, "second", m.Route.Name)
	assert.Equal(t, map[string]string{"b": "z", "c": "q"}, m.Params)
}

func TestRoleCheckedBeforeFeatures(t *testing.T) {
	spy := &spyFeatures{granted: true}
	r := NewRouter(spy, nil)
	r.Register("/instructor/quizzes/new", Route{
		RequiresAuth: true,
		Roles:        []access.Role{access.RoleInstructor},
		Features:     []access.Feature{access.FeatureCreateQuizzes},
	})

	student := &access.Actor{ID: "s1", Role: access.RoleStudent, TenantID: "A", Tier: access.TierEnterprise}
	out := r.Enter(context.Background(), "/instructor/quizzes/new", student)
	assert.False(t, out.Allowed)
	assert.Equal(t, PathForbiddenRole, out.Redirect)
	assert.Zero(t, spy.calls)
}

func TestEnterGateOrder(t *testing.T) {
	spy := &spyFeatures{}
	r := NewRouter(spy, nil)
	r.Register("/instructor/analytics", Route{
		RequiresAuth: true,
		Roles:        []access.Role{access.RoleInstructor},
		Features:     []access.Feature{access.FeatureViewAnalytics},
	})
	vetoed := false
	r.AddGuard("/instructor/analytics", func(context.Context, Match, *access.Actor) bool { return true })
	r.AddGuard("/instructor/analytics", func(context.Context, Match, *access.Actor) bool { return !vetoed })
	instructor := &access.Actor{ID: "u1", Role: access.RoleInstructor, TenantID: "A"}

	assert.Equal(t, PathNotFound, r.Enter(context.Background(), "/nowhere", instructor).Redirect)
	assert.Equal(t, PathLogin, r.Enter(context.Background(), "/instructor/analytics", nil).Redirect)
	assert.Equal(t, PathLogin, r.Enter(context.Background(), "/instructor/analytics", &access.Actor{Role: access.RoleInstructor}).Redirect)
	assert.Equal(t, PathForbiddenFeature, r.Enter(context.Background(), "/instructor/analytics", instructor).Redirect)
	assert.Equal(t, 1, spy.calls)

	spy.granted = true
	out := r.Enter(context.Background(), "/instructor/analytics", instructor)
	assert.True(t, out.Allowed)
	assert.Empty(t, out.Redirect)

	vetoed = true
	assert.Equal(t, PathForbiddenGuard, r.Enter(context.Background(), "/instructor/analytics", instructor).Redirect)
}

func TestPublicRouteNeedsNoActor(t *testing.T) {
	r := NewRouter(nil, nil)
	DefaultRoutes(r)
	out := r.Enter(context.Background(), "/pricing", nil)
	assert.True(t, out.Allowed)
}

func TestDefaultRoutesUsePolicyFeatures(t *testing.T) {
	control := access.NewControl(access.ControlConfig{})
	r := NewRouter(control.Features(), nil)
	DefaultRoutes(r)

	basic := &access.Actor{ID: "u1", Role: access.RoleInstructor, TenantID: "A", Tier: access.TierBasic}
	pro := &access.Actor{ID: "u1", Role: access.RoleInstructor, TenantID: "A", Tier: access.TierPro}

	assert.True(t, r.Enter(context.Background(), "/instructor/quizzes/new", basic).Allowed)
	assert.Equal(t, PathForbiddenFeature, r.Enter(context.Background(), "/instructor/quizzes/q1/analytics", basic).Redirect)
	assert.True(t, r.Enter(context.Background(), "/instructor/quizzes/q1/analytics", pro).Allowed)
	assert.Equal(t, PathForbiddenFeature, r.Enter(context.Background(), "/instructor/branding", pro).Redirect)
}

func TestResultOwnerGuard(t *testing.T) {
	r := NewRouter(nil, nil)
	DefaultRoutes(r)
	DefaultGuards(r)
	student := &access.Actor{ID: "s1", Role: access.RoleStudent, TenantID: "A"}

	assert.True(t, r.Enter(context.Background(), "/student/results/s1", student).Allowed)
	assert.Equal(t, PathForbiddenGuard, r.Enter(context.Background(), "/student/results/s2", student).Redirect)
}

func TestDecisionGuardUsesSessionEngine(t *testing.T) {
	checker := access.CheckerFunc(func(_ context.Context, req access.CheckRequest) (bool, error) {
		return req.ResourceID == "c1", nil
	})
	control := access.NewControl(access.ControlConfig{Checker: checker})
	student := access.Actor{ID: "s1", Role: access.RoleStudent, TenantID: "A"}
	ctx := access.WithSession(context.Background(), control.NewSession(student))

	r := NewRouter(control.Features(), nil)
	DefaultRoutes(r)
	DefaultGuards(r)

	assert.True(t, r.Enter(ctx, "/student/classrooms/c1", &student).Allowed)
	assert.Equal(t, PathForbiddenGuard, r.Enter(ctx, "/student/classrooms/c2", &student).Redirect)
	assert.Equal(t, PathForbiddenGuard, r.Enter(context.Background(), "/student/classrooms/c1", &student).Redirect)
}
