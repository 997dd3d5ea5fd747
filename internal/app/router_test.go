package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/quizroom/quizroom/internal/access"
	accesshttp "github.com/quizroom/quizroom/internal/access/http"
	"github.com/quizroom/quizroom/internal/navigation"
	"github.com/quizroom/quizroom/internal/observability"
	"github.com/quizroom/quizroom/internal/shared"
)

func newTestRouter(t *testing.T, ready map[string]ReadinessCheck) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	control := access.NewControl(access.ControlConfig{
		Checker: access.CheckerFunc(func(context.Context, access.CheckRequest) (bool, error) { return true, nil }),
	})
	registry := access.NewRegistry(control, 16, time.Hour)
	nav := navigation.NewRouter(control.Features(), nil)
	navigation.DefaultRoutes(nav)
	token, err := shared.NewServiceToken("")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	sessions := shared.NewSessionManager(client, "quizroom_session", "secret", time.Hour, false)
	mw := accesshttp.Middleware{Registry: registry, Features: control.Features()}
	return NewRouter(RouterParams{
		Config:           &Config{AppRequestTimeout: time.Second, AppRateLimit: 1000},
		SessionManager:   sessions,
		ServiceToken:     token,
		AccessMiddleware: mw,
		AccessHandler: accesshttp.NewHandler(accesshttp.HandlerConfig{
			Control:  control,
			Registry: registry,
			Router:   nav,
			Sessions: sessions,
		}),
		Metrics:   observability.NewMetrics(),
		Readiness: ready,
	})
}

func TestRouterHealthAndSecurityHeaders(t *testing.T) {
	router := newTestRouter(t, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing secure headers: %v", rr.Header())
	}
	if rr.Header().Get("Set-Cookie") != "" {
		t.Fatalf("anonymous requests must not get a session cookie")
	}
}

func TestRouterReadiness(t *testing.T) {
	router := newTestRouter(t, map[string]ReadinessCheck{
		"postgres": func(context.Context) error { return errors.New("down") },
		"redis":    func(context.Context) error { return nil },
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"postgres":"unavailable"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestRouterInstallsActorAndServesPlan(t *testing.T) {
	router := newTestRouter(t, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/plan", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without actor, got %d", rr.Code)
	}

	body := `{"id":"u1","role":"instructor","tenantId":"A","subscriptionTier":"pro"}`
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(body)))
	if rr.Code != http.StatusOK && rr.Code != http.StatusNoContent {
		t.Fatalf("install actor: %d %s", rr.Code, rr.Body.String())
	}
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected a session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/plan", nil)
	req.AddCookie(cookies[0])
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with actor, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "\"pro\"") {
		t.Fatalf("unexpected plan body: %s", rr.Body.String())
	}
}
