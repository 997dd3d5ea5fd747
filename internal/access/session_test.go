package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReinitializeWithNewActorClearsCache(t *testing.T) {
	checker := &countingChecker{}
	control := NewControl(ControlConfig{Checker: checker})
	sess := control.NewSession(Actor{ID: "u1", Role: RoleInstructor, TenantID: "A"})
	ctx := context.Background()

	_, err := sess.Verifier().Verify(ctx, KindClassroom, "A", "c1", "u1", ActionRead)
	require.NoError(t, err)
	require.Equal(t, 1, sess.Verifier().Len())

	assert.True(t, sess.Reinitialize(Actor{ID: "u2", Role: RoleInstructor, TenantID: "A"}))
	assert.Equal(t, 0, sess.Verifier().Len())

	_, err = sess.Verifier().Verify(ctx, KindClassroom, "A", "c1", "u2", ActionRead)
	require.NoError(t, err)
	assert.Equal(t, int32(2), checker.calls.Load())
}

func TestReinitializeSameContextKeepsCache(t *testing.T) {
	checker := &countingChecker{}
	control := NewControl(ControlConfig{Checker: checker})
	actor := Actor{ID: "u1", Role: RoleInstructor, TenantID: "A", Tier: TierBasic}
	sess := control.NewSession(actor)

	_, err := sess.Decide(context.Background(), Quiz{Ref{ID: "q1"}}, ActionRead)
	require.NoError(t, err)

	actor.Tier = TierPro
	assert.False(t, sess.Reinitialize(actor))
	assert.Equal(t, TierPro, sess.Actor().Tier)

	_, err = sess.Decide(context.Background(), Quiz{Ref{ID: "q1"}}, ActionRead)
	require.NoError(t, err)
	assert.Equal(t, int32(1), checker.calls.Load())
}

func TestTenantSwitchClearsCache(t *testing.T) {
	checker := &countingChecker{}
	control := NewControl(ControlConfig{Checker: checker})
	sess := control.NewSession(Actor{ID: "u1", Role: RoleInstructor, TenantID: "A"})

	_, _ = sess.Decide(context.Background(), Quiz{Ref{ID: "q1"}}, ActionRead)
	assert.True(t, sess.Reinitialize(Actor{ID: "u1", Role: RoleInstructor, TenantID: "B"}))
	_, _ = sess.Decide(context.Background(), Quiz{Ref{ID: "q1"}}, ActionRead)
	assert.Equal(t, int32(2), checker.calls.Load())
}

func TestRegistryReusesAndInvalidatesSessions(t *testing.T) {
	checker := &countingChecker{}
	control := NewControl(ControlConfig{Checker: checker})
	reg := NewRegistry(control, 10, time.Minute)
	actor := Actor{ID: "s1", Role: RoleStudent, TenantID: "A"}

	sess := reg.Session("sid-1", actor)
	assert.Same(t, sess, reg.Session("sid-1", actor))
	other := reg.Session("sid-2", Actor{ID: "s2", Role: RoleStudent, TenantID: "A"})
	assert.Equal(t, 2, reg.Len())

	_, _ = sess.Decide(context.Background(), Classroom{Ref{ID: "c1"}}, ActionRead)
	_, _ = other.Decide(context.Background(), Classroom{Ref{ID: "c1"}}, ActionRead)
	require.Equal(t, int32(2), checker.calls.Load())

	reg.Invalidate(KindMembership)
	assert.Equal(t, 0, sess.Verifier().Len())
	assert.Equal(t, 0, other.Verifier().Len())

	reg.Drop("sid-1")
	assert.Equal(t, 1, reg.Len())
	assert.NotSame(t, sess, reg.Session("sid-1", actor))
}

func TestControlFeaturesFallBackToPolicy(t *testing.T) {
	control := NewControl(ControlConfig{})
	ok, err := control.Features().HasFeatures(context.Background(), Actor{Tier: TierBasic}, FeatureViewAnalytics)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = control.Features().HasFeatures(context.Background(), Actor{Tier: TierPro}, FeatureViewAnalytics, FeatureCreateQuizzes)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSessionContext(t *testing.T) {
	control := NewControl(ControlConfig{})
	sess := control.NewSession(Actor{ID: "u1", Role: RoleSuperAdmin})
	ctx := WithSession(context.Background(), sess)
	assert.Same(t, sess, SessionFromContext(ctx))
	assert.Nil(t, SessionFromContext(context.Background()))
}
