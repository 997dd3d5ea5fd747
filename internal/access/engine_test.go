package access

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allResources() []Resource {
	ref := Ref{ID: "r-1", TenantID: "other-tenant"}
	return []Resource{
		Quiz{ref}, QuizBlueprint{ref}, QuizAttempt{ref}, Classroom{ref},
		Student{ref}, Analytics{ref}, Result{ref},
	}
}

func allActions() []Action {
	return []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete, ActionSubmit, Action("archive")}
}

func TestSuperAdminAlwaysAllowedWithoutNetwork(t *testing.T) {
	checker := &countingChecker{answer: func(CheckRequest) (bool, error) { return false, nil }}
	engine := newTestEngine(checker, nil)
	admin := &Actor{ID: "root", Role: RoleSuperAdmin}

	for _, res := range allResources() {
		for _, action := range allActions() {
			d, err := engine.Decide(context.Background(), admin, res, action)
			require.NoError(t, err)
			assert.True(t, d.Allow, "%s/%s", res.Type(), action)
		}
	}
	d, err := engine.DecideRaw(context.Background(), admin, "invoice", "x", "", ActionDelete)
	require.NoError(t, err)
	assert.True(t, d.Allow)
	assert.Equal(t, int32(0), checker.calls.Load())
}

func TestInstructorAnalyticsResolvedLocally(t *testing.T) {
	checker := &countingChecker{}
	engine := newTestEngine(checker, nil)
	instructor := &Actor{ID: "u1", Role: RoleInstructor, TenantID: "A"}

	cases := []struct {
		name   string
		res    Analytics
		action Action
		allow  bool
	}{
		{"own tenant read", Analytics{Ref{ID: "A", TenantID: "A"}}, ActionRead, true},
		{"own tenant by id", Analytics{Ref{ID: "A"}}, ActionRead, true},
		{"own tenant write", Analytics{Ref{ID: "A", TenantID: "A"}}, ActionUpdate, false},
		{"other tenant read", Analytics{Ref{ID: "B"}}, ActionRead, false},
		{"other tenant ref", Analytics{Ref{ID: "B", TenantID: "B"}}, ActionRead, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := engine.Decide(context.Background(), instructor, tc.res, tc.action)
			require.NoError(t, err)
			assert.Equal(t, tc.allow, d.Allow)
		})
	}
	assert.Equal(t, int32(0), checker.calls.Load())
}

func TestStudentResultOnlyOwn(t *testing.T) {
	engine := newTestEngine(&countingChecker{}, nil)
	student := &Actor{ID: "s1", Role: RoleStudent, TenantID: "A"}

	d, err := engine.Decide(context.Background(), student, Result{Ref{ID: "s1"}}, ActionRead)
	require.NoError(t, err)
	assert.True(t, d.Allow)

	for _, other := range []string{"s2", "", "S1"} {
		d, err = engine.Decide(context.Background(), student, Result{Ref{ID: other}}, ActionRead)
		require.NoError(t, err)
		assert.False(t, d.Allow, "result %q", other)
	}
}

func TestStudentQuizAndAttemptRules(t *testing.T) {
	engine := newTestEngine(&countingChecker{}, nil)
	student := &Actor{ID: "s1", Role: RoleStudent, TenantID: "A"}

	for _, res := range []Resource{Quiz{Ref{ID: "q9"}}, QuizAttempt{Ref{ID: "s2"}}} {
		d, err := engine.Decide(context.Background(), student, res, ActionRead)
		require.NoError(t, err)
		assert.True(t, d.Allow)

		d, err = engine.Decide(context.Background(), student, res, ActionSubmit)
		require.NoError(t, err)
		assert.False(t, d.Allow)
	}

	d, err := engine.Decide(context.Background(), student, QuizAttempt{Ref{ID: "s1"}}, ActionSubmit)
	require.NoError(t, err)
	assert.True(t, d.Allow)
}

func TestStudentDeniedInstructorResources(t *testing.T) {
	engine := newTestEngine(&countingChecker{}, nil)
	student := &Actor{ID: "s1", Role: RoleStudent, TenantID: "A"}

	for _, res := range []Resource{Student{Ref{ID: "x"}}, Analytics{Ref{ID: "A"}}, QuizBlueprint{Ref{ID: "b"}}} {
		d, err := engine.Decide(context.Background(), student, res, ActionRead)
		assert.False(t, d.Allow)
		assert.ErrorIs(t, err, ErrAccessDenied)
	}
	d, err := engine.DecideRaw(context.Background(), student, "invoice", "x", "", ActionRead)
	assert.False(t, d.Allow)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestInstructorUnknownResource(t *testing.T) {
	engine := newTestEngine(&countingChecker{}, nil)
	instructor := &Actor{ID: "u1", Role: RoleInstructor, TenantID: "A"}

	_, err := engine.DecideRaw(context.Background(), instructor, "invoice", "x", "", ActionRead)
	assert.ErrorIs(t, err, ErrUnknownResource)

	_, err = engine.Decide(context.Background(), instructor, Result{Ref{ID: "s1"}}, ActionRead)
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestInstructorDelegatesToRemoteChecks(t *testing.T) {
	var got []CheckRequest
	checker := &countingChecker{answer: func(req CheckRequest) (bool, error) {
		got = append(got, req)
		return req.ResourceID == "mine", nil
	}}
	engine := newTestEngine(checker, nil)
	instructor := &Actor{ID: "u1", Role: RoleInstructor, TenantID: "A"}

	d, err := engine.Decide(context.Background(), instructor, Quiz{Ref{ID: "mine"}}, ActionUpdate)
	require.NoError(t, err)
	assert.True(t, d.Allow)

	d, err = engine.Decide(context.Background(), instructor, Classroom{Ref{ID: "theirs"}}, ActionRead)
	require.NoError(t, err)
	assert.False(t, d.Allow)

	_, err = engine.Decide(context.Background(), instructor, Student{Ref{ID: "s5"}}, ActionRead)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, KindQuiz, got[0].Kind)
	assert.Equal(t, "A", got[0].TenantID)
	assert.Equal(t, "u1", got[0].ActorID)
	assert.Equal(t, ActionUpdate, got[0].Action)
	assert.Equal(t, KindClassroom, got[1].Kind)
	assert.Equal(t, KindStudent, got[2].Kind)
}

func TestStudentClassroomUsesMembership(t *testing.T) {
	var kind Kind
	checker := &countingChecker{answer: func(req CheckRequest) (bool, error) {
		kind = req.Kind
		return true, nil
	}}
	engine := newTestEngine(checker, nil)
	student := &Actor{ID: "s1", Role: RoleStudent, TenantID: "A"}

	d, err := engine.Decide(context.Background(), student, Classroom{Ref{ID: "c1"}}, ActionRead)
	require.NoError(t, err)
	assert.True(t, d.Allow)
	assert.Equal(t, KindMembership, kind)
}

func TestForeignTenantDeniedBeforeOwnership(t *testing.T) {
	checker := &countingChecker{}
	engine := newTestEngine(checker, nil)
	student := &Actor{ID: "s1", Role: RoleStudent, TenantID: "A"}
	instructor := &Actor{ID: "u1", Role: RoleInstructor, TenantID: "A"}

	d, err := engine.Decide(context.Background(), student, Result{Ref{ID: "s1", TenantID: "B"}}, ActionRead)
	require.NoError(t, err)
	assert.False(t, d.Allow)

	d, err = engine.Decide(context.Background(), instructor, Quiz{Ref{ID: "q1", TenantID: "B"}}, ActionRead)
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, int32(0), checker.calls.Load())
}

func TestMissingContextFailsClosed(t *testing.T) {
	engine := newTestEngine(&countingChecker{}, nil)

	d, err := engine.Decide(context.Background(), nil, Quiz{Ref{ID: "q"}}, ActionRead)
	assert.False(t, d.Allow)
	assert.ErrorIs(t, err, ErrNoContext)

	d, err = engine.Decide(context.Background(), &Actor{ID: "u1", Role: RoleInstructor}, Quiz{Ref{ID: "q"}}, ActionRead)
	assert.False(t, d.Allow)
	assert.ErrorIs(t, err, ErrNoContext)

	d, err = engine.Decide(context.Background(), &Actor{ID: "u1", Role: "parent", TenantID: "A"}, Quiz{Ref{ID: "q"}}, ActionRead)
	assert.False(t, d.Allow)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestVerificationFailureIsDenyWithError(t *testing.T) {
	checker := &countingChecker{answer: func(req CheckRequest) (bool, error) {
		return false, &VerificationError{Kind: req.Kind, Status: 500, Body: "boom"}
	}}
	engine := newTestEngine(checker, nil)
	instructor := &Actor{ID: "u1", Role: RoleInstructor, TenantID: "A"}

	d, err := engine.Decide(context.Background(), instructor, Quiz{Ref{ID: "q"}}, ActionRead)
	assert.False(t, d.Allow)
	require.Error(t, err)
	assert.True(t, IsVerificationError(err))
	assert.False(t, errors.Is(err, ErrAccessDenied))

	err = engine.Authorize(context.Background(), instructor, Quiz{Ref{ID: "q"}}, ActionRead)
	assert.True(t, IsVerificationError(err))
	assert.Equal(t, int32(2), checker.calls.Load())
}

func TestAuthorizeWrapsDeny(t *testing.T) {
	engine := newTestEngine(&countingChecker{}, nil)
	student := &Actor{ID: "s1", Role: RoleStudent, TenantID: "A"}

	err := engine.Authorize(context.Background(), student, Result{Ref{ID: "s2"}}, ActionRead)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.NoError(t, engine.Authorize(context.Background(), student, Result{Ref{ID: "s1"}}, ActionRead))
}

func TestEveryDecisionIsAudited(t *testing.T) {
	sink := &recordingSink{}
	engine := newTestEngine(&countingChecker{}, sink)
	student := &Actor{ID: "s1", Role: RoleStudent, TenantID: "A"}
	ctx := WithUserAgent(context.Background(), "quizroom-test/1.0")

	_, _ = engine.Decide(ctx, student, Result{Ref{ID: "s1"}}, ActionRead)
	_, _ = engine.Decide(ctx, student, Result{Ref{ID: "s2"}}, ActionRead)
	_, _ = engine.Decide(ctx, nil, Result{Ref{ID: "s2"}}, ActionRead)
	_, _ = engine.DecideRaw(ctx, student, "invoice", "i1", "", ActionRead)

	entries := sink.all()
	require.Len(t, entries, 4)
	assert.Equal(t, AuditSuccess, entries[0].Result)
	assert.Equal(t, "quizroom-test/1.0", entries[0].UserAgent)
	assert.Equal(t, "result", entries[0].ResourceType)
	assert.Equal(t, AuditDenied, entries[1].Result)
	assert.Equal(t, AuditDenied, entries[2].Result)
	assert.Empty(t, entries[2].UserID)
	assert.Equal(t, "invoice", entries[3].ResourceType)
}

func TestPanickingSinkDoesNotChangeDecision(t *testing.T) {
	engine := newTestEngine(&countingChecker{}, MultiSink{panickingSink{}})
	student := &Actor{ID: "s1", Role: RoleStudent, TenantID: "A"}

	d, err := engine.Decide(context.Background(), student, Result{Ref{ID: "s1"}}, ActionRead)
	require.NoError(t, err)
	assert.True(t, d.Allow)
}

func TestParseResource(t *testing.T) {
	res, err := ParseResource(" classroom ", "c1", "A")
	require.NoError(t, err)
	assert.Equal(t, Classroom{Ref{ID: "c1", TenantID: "A"}}, res)

	_, err = ParseResource("invoice", "x", "")
	assert.ErrorIs(t, err, ErrUnknownResource)
}
