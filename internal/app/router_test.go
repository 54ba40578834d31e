package app_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/docqueue/internal/adapter/httpserver"
	"github.com/fairyhunter13/docqueue/internal/adapter/repo/memory"
	"github.com/fairyhunter13/docqueue/internal/app"
	"github.com/fairyhunter13/docqueue/internal/config"
	"github.com/fairyhunter13/docqueue/internal/domain"
	"github.com/fairyhunter13/docqueue/internal/usecase"
)

type tableVerifier map[string]domain.Identity

func (v tableVerifier) Verify(_ context.Context, token string) (domain.Identity, error) {
	identity, ok := v[token]
	if !ok {
		return domain.Identity{}, fmt.Errorf("%w: unknown token", domain.ErrUnauthorized)
	}
	return identity, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	repo := memory.NewTaskRepo()
	srv := &httpserver.Server{
		Submit:       usecase.NewSubmitService(repo, t.TempDir(), 1<<20),
		Result:       usecase.NewResultService(repo, nil),
		Queue:        usecase.NewQueueService(repo),
		StaleTimeout: time.Hour,
		RetentionAge: 7 * 24 * time.Hour,
	}
	cfg := config.Config{
		HTTPWriteTimeout: 10 * time.Second,
		CORSAllowOrigins: "*",
		RateLimitPerMin:  0,
	}
	verifier := tableVerifier{
		"tok-user":  {UserID: "u-1", UserName: "alice", Role: domain.RoleUser},
		"tok-admin": {UserID: "a-1", UserName: "root", Role: domain.RoleAdmin},
	}
	return app.NewRouter(cfg, srv, verifier)
}

func get(router http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func post(router http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_HealthIsOpen(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	rec := get(router, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_EnginesIsOpen(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	rec := get(router, "/api/v1/engines", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRouter_MetricsIsOpen(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	rec := get(router, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_AuthRequired(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/tasks/some-id",
		"/api/v1/queue/stats",
		"/api/v1/queue/tasks",
	} {
		rec := get(router, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := get(router, "/api/v1/queue/stats", "bogus")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AdminRequiresQueueManage(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec := post(router, "/api/v1/admin/cleanup", "tok-user")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = post(router, "/api/v1/admin/reset-stale", "tok-user")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = post(router, "/api/v1/admin/cleanup", "tok-admin")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = post(router, "/api/v1/admin/reset-stale", "tok-admin")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRouter_AuthenticatedQueueAccess(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)

	rec := get(router, "/api/v1/queue/stats", "tok-user")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = get(router, "/api/v1/queue/tasks", "tok-user")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRouter_SecurityHeaders(t *testing.T) {
	t.Parallel()
	router := newTestRouter(t)
	rec := get(router, "/api/v1/health", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
