package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quizroom/quizroom/internal/access"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckerPostsToKindEndpoint(t *testing.T) {
	var gotPath string
	var gotBody checkBody
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]bool{"hasAccess": true})
	}))
	defer srv.Close()

	checker := NewChecker(srv.URL+"/", "secret")
	ok, err := checker.Check(context.Background(), access.CheckRequest{
		Kind:       access.KindMembership,
		TenantID:   "A",
		ResourceID: "c1",
		ActorID:    "s1",
		Action:     access.ActionRead,
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/access/membership", gotPath)
	assert.Equal(t, checkBody{TenantID: "A", UserID: "s1", ResourceID: "c1", Action: "read"}, gotBody)
	assert.Equal(t, "Bearer secret", gotHeader.Get("Authorization"))
	assert.Equal(t, "A", gotHeader.Get(access.HeaderTenantID))
	assert.Equal(t, "s1", gotHeader.Get(access.HeaderUserID))
}

func TestCheckerUsesSessionScopeHeaders(t *testing.T) {
	var role string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = r.Header.Get(access.HeaderUserRole)
		_, _ = w.Write([]byte(`{"hasAccess":false}`))
	}))
	defer srv.Close()

	control := access.NewControl(access.ControlConfig{})
	sess := control.NewSession(access.Actor{ID: "u1", Role: access.RoleInstructor, TenantID: "A"})
	ctx := access.WithSession(context.Background(), sess)

	ok, err := NewChecker(srv.URL, "").Check(ctx, access.CheckRequest{Kind: access.KindQuiz, TenantID: "A", ResourceID: "q1", ActorID: "u1"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "instructor", role)
}

func TestCheckerNon2xxIsVerificationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "classroom lookup failed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ok, err := NewChecker(srv.URL, "").Check(context.Background(), access.CheckRequest{Kind: access.KindClassroom, TenantID: "A", ResourceID: "c1", ActorID: "u1"})
	assert.False(t, ok)
	var verr *access.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, http.StatusInternalServerError, verr.Status)
	assert.Equal(t, "classroom lookup failed", verr.Body)
	assert.Equal(t, access.KindClassroom, verr.Kind)
}

func TestCheckerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewChecker(url, "").Check(context.Background(), access.CheckRequest{Kind: access.KindQuiz})
	assert.True(t, access.IsVerificationError(err))
}
