package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"project-service/internal/audit"
	"project-service/internal/auth"
	"project-service/internal/config"
	"project-service/internal/domain/identity"
	"project-service/internal/http/middleware"
	"project-service/internal/metrics"
	"project-service/internal/rbac"
	"project-service/internal/rbac/presets"
	"project-service/internal/repository/sqlite"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "s3cret-pass"

var testEpoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type testServer struct {
	handler     stdhttp.Handler
	store       *sqlite.IdentityRepository
	clock       *abtime.ManualTime
	credentials *auth.CredentialVerifier
	recorder    *audit.Recorder
	auditSink   *auditSink
}

type auditSink struct {
	records chan *audit.Record
}

func (s *auditSink) Write(_ context.Context, r *audit.Record) error {
	s.records <- r
	return nil
}

func newTestServer(t *testing.T, loginLimit int) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, loginLimit, nil)
}

func newTestServerWithConfig(t *testing.T, loginLimit int, cfg *config.Config) *testServer {
	t.Helper()

	store, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := abtime.NewManualAtTime(testEpoch)
	tokens, err := auth.NewTokenService([]byte("0123456789abcdefghijklmnopqrstuvwxyz"), time.Hour, auth.WithClock(clock))
	require.NoError(t, err)

	log := zerolog.Nop()
	credentials := auth.NewCredentialVerifier(bcrypt.MinCost)
	resolver := auth.NewIdentityResolver(store, time.Second)
	m := metrics.New(prometheus.NewRegistry())
	sink := &auditSink{records: make(chan *audit.Record, 64)}
	recorder := audit.NewRecorder(sink, log)
	t.Cleanup(recorder.Close)
	observer := auth.Observers{m, recorder}

	deps := &ServerDependencies{
		Config:        cfg,
		Logger:        log,
		Identities:    store,
		Authenticator: auth.NewAuthenticator(tokens, resolver, observer, log),
		Guard:         auth.NewGuard(rbac.MustNew(presets.ProjectService()), observer, log),
		Login:         auth.NewLoginService(resolver, credentials, tokens),
		Credentials:   credentials,
		Observer:      observer,
		Metrics:       m,
	}
	if loginLimit > 0 {
		deps.LoginLimiter = middleware.NewWindowRateLimiter(loginLimit, time.Minute)
	}

	srv, err := NewServer(deps)
	require.NoError(t, err)

	return &testServer{
		handler:     srv.Handler(),
		store:       store,
		clock:       clock,
		credentials: credentials,
		recorder:    recorder,
		auditSink:   sink,
	}
}

func (s *testServer) createIdentity(t *testing.T, username string, role identity.Role) *identity.Identity {
	t.Helper()
	hash, err := s.credentials.Hash(testPassword)
	require.NoError(t, err)
	i, err := s.store.Create(context.Background(), identity.CreateIdentityInput{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	})
	require.NoError(t, err)
	return i
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	rec := s.do(t, stdhttp.MethodPost, presets.RouteLogin, "", map[string]string{
		"username": username,
		"password": testPassword,
	})
	require.Equal(t, stdhttp.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestLoginAndMe(t *testing.T) {
	s := newTestServer(t, 0)
	admin := s.createIdentity(t, "root", identity.RoleAdmin)

	rec := s.do(t, stdhttp.MethodPost, presets.RouteLogin, "", map[string]string{
		"username": "ROOT",
		"password": testPassword,
	})
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Bearer", body["tokenType"])
	assert.Equal(t, testEpoch.Add(time.Hour).Format(time.RFC3339), body["expiresAt"])
	assert.Equal(t, map[string]any{"id": admin.ID.String(), "username": "root", "role": "ADMIN"}, body["identity"])
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	token, _ := body["token"].(string)
	rec = s.do(t, stdhttp.MethodGet, presets.RouteMe, token, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	me := decode(t, rec)
	assert.Equal(t, []any{"ADMIN"}, me["authorities"])
}

func TestLoginFailuresShareOneResponse(t *testing.T) {
	s := newTestServer(t, 0)
	s.createIdentity(t, "alice", identity.RoleUser)

	unknown := s.do(t, stdhttp.MethodPost, presets.RouteLogin, "", map[string]string{"username": "nobody", "password": testPassword})
	wrong := s.do(t, stdhttp.MethodPost, presets.RouteLogin, "", map[string]string{"username": "alice", "password": "not-the-password"})

	assert.Equal(t, stdhttp.StatusUnauthorized, unknown.Code)
	assert.Equal(t, stdhttp.StatusUnauthorized, wrong.Code)

	unknownBody, wrongBody := decode(t, unknown), decode(t, wrong)
	assert.Equal(t, "invalid username or password", unknownBody["error"])
	assert.Equal(t, unknownBody["error"], wrongBody["error"])
	assert.NotEmpty(t, unknownBody["request_id"])
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, stdhttp.MethodPost, presets.RouteLogin, "", map[string]string{"username": "a", "password": "b", "extra": "c"})
	assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decode(t, rec)["error"])

	req := httptest.NewRequest(stdhttp.MethodPost, presets.RouteLogin, strings.NewReader("username=a"))
	raw := httptest.NewRecorder()
	s.handler.ServeHTTP(raw, req)
	assert.Equal(t, stdhttp.StatusUnsupportedMediaType, raw.Code)
}

func TestProtectedRoutes(t *testing.T) {
	s := newTestServer(t, 0)
	s.createIdentity(t, "root", identity.RoleAdmin)
	s.createIdentity(t, "alice", identity.RoleUser)
	s.createIdentity(t, "pat", identity.RoleProjectManager)

	rootToken := s.login(t, "root")
	aliceToken := s.login(t, "alice")
	patToken := s.login(t, "pat")

	t.Run("anonymous me", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, presets.RouteMe, "", nil)
		assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "authentication required", decode(t, rec)["error"])
	})

	t.Run("garbage token is anonymous", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, presets.RouteMe, "not.a.jwt", nil)
		assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
	})

	t.Run("public route ignores bad token", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, presets.RouteHealth, "not.a.jwt", nil)
		assert.Equal(t, stdhttp.StatusOK, rec.Code)
	})

	t.Run("user on admin route", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, presets.RouteAdminUsers, aliceToken, nil)
		assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
		assert.Equal(t, "access denied", decode(t, rec)["error"])
	})

	t.Run("project manager on admin route", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, presets.RouteAdminUsers, patToken, nil)
		assert.Equal(t, stdhttp.StatusForbidden, rec.Code)
	})

	t.Run("admin lists users", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, presets.RouteAdminUsers+"?q=a&limit=10", rootToken, nil)
		require.Equal(t, stdhttp.StatusOK, rec.Code)

		var resp struct {
			Users []struct {
				Username string `json:"username"`
				Enabled  bool   `json:"enabled"`
			} `json:"users"`
			Limit int `json:"limit"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Users, 1)
		assert.Equal(t, "alice", resp.Users[0].Username)
		assert.True(t, resp.Users[0].Enabled)
		assert.Equal(t, 10, resp.Limit)
		assert.NotContains(t, rec.Body.String(), "$2a$")
	})

	t.Run("bad pagination", func(t *testing.T) {
		rec := s.do(t, stdhttp.MethodGet, presets.RouteAdminUsers+"?limit=-1", rootToken, nil)
		assert.Equal(t, stdhttp.StatusBadRequest, rec.Code)
	})
}

func TestAdminDisableRevokesAccess(t *testing.T) {
	s := newTestServer(t, 0)
	s.createIdentity(t, "root", identity.RoleAdmin)
	alice := s.createIdentity(t, "alice", identity.RoleUser)

	rootToken := s.login(t, "root")
	aliceToken := s.login(t, "alice")

	require.Equal(t, stdhttp.StatusOK, s.do(t, stdhttp.MethodGet, presets.RouteMe, aliceToken, nil).Code)

	path := "/api/admin/users/" + alice.ID.String()
	rec := s.do(t, stdhttp.MethodPatch, path, rootToken, map[string]any{"enabled": false})
	require.Equal(t, stdhttp.StatusNoContent, rec.Code, rec.Body.String())

	// The token is still valid, but the identity no longer resolves.
	assert.Equal(t, stdhttp.StatusUnauthorized, s.do(t, stdhttp.MethodGet, presets.RouteMe, aliceToken, nil).Code)

	failed := s.do(t, stdhttp.MethodPost, presets.RouteLogin, "", map[string]string{"username": "alice", "password": testPassword})
	assert.Equal(t, stdhttp.StatusUnauthorized, failed.Code)
}

// An ADMIN token expires with the clock, and a fresh one stops resolving once
// another administrator disables its owner.
func TestAdminTokenLifecycleAgainstStore(t *testing.T) {
	s := newTestServer(t, 0)
	root := s.createIdentity(t, "root", identity.RoleAdmin)
	s.createIdentity(t, "backup", identity.RoleAdmin)

	token := s.login(t, "root")
	rec := s.do(t, stdhttp.MethodGet, presets.RouteMe, token, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	me, _ := decode(t, rec)["identity"].(map[string]any)
	assert.Equal(t, root.ID.String(), me["id"])

	s.clock.Advance(time.Hour + time.Second)
	assert.Equal(t, stdhttp.StatusUnauthorized, s.do(t, stdhttp.MethodGet, presets.RouteMe, token, nil).Code)

	token = s.login(t, "root")
	backupToken := s.login(t, "backup")
	require.Equal(t, stdhttp.StatusOK, s.do(t, stdhttp.MethodGet, presets.RouteAdminUsers, token, nil).Code)

	rec = s.do(t, stdhttp.MethodPatch, "/api/admin/users/"+root.ID.String(), backupToken, map[string]any{"enabled": false})
	require.Equal(t, stdhttp.StatusNoContent, rec.Code, rec.Body.String())

	assert.Equal(t, stdhttp.StatusUnauthorized, s.do(t, stdhttp.MethodGet, presets.RouteMe, token, nil).Code)
	assert.Equal(t, stdhttp.StatusUnauthorized, s.do(t, stdhttp.MethodGet, presets.RouteAdminUsers, token, nil).Code)

	stored, err := s.store.GetByID(context.Background(), root.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
}

func TestAdminUpdateValidation(t *testing.T) {
	s := newTestServer(t, 0)
	root := s.createIdentity(t, "root", identity.RoleAdmin)
	alice := s.createIdentity(t, "alice", identity.RoleUser)
	rootToken := s.login(t, "root")

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"bad id", "/api/admin/users/not-a-uuid", map[string]any{"enabled": true}, stdhttp.StatusBadRequest},
		{"empty update", "/api/admin/users/" + alice.ID.String(), map[string]any{}, stdhttp.StatusBadRequest},
		{"unknown role", "/api/admin/users/" + alice.ID.String(), map[string]any{"role": "SUPERUSER"}, stdhttp.StatusBadRequest},
		{"promote", "/api/admin/users/" + alice.ID.String(), map[string]any{"role": "project_manager"}, stdhttp.StatusNoContent},
		{"missing identity", "/api/admin/users/00000000-0000-0000-0000-000000000001", map[string]any{"enabled": false}, stdhttp.StatusNotFound},
		{"last admin", "/api/admin/users/" + root.ID.String(), map[string]any{"enabled": false}, stdhttp.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, stdhttp.MethodPatch, tt.path, rootToken, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	promoted, err := s.store.GetByID(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleProjectManager, promoted.Role)
}

func TestRegister(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, stdhttp.MethodPost, presets.RouteRegister, "", map[string]string{"username": "Bob", "password": testPassword})
	require.Equal(t, stdhttp.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "bob", body["username"])
	assert.Equal(t, "USER", body["role"])

	dup := s.do(t, stdhttp.MethodPost, presets.RouteRegister, "", map[string]string{"username": "bob", "password": testPassword})
	assert.Equal(t, stdhttp.StatusConflict, dup.Code)

	weak := s.do(t, stdhttp.MethodPost, presets.RouteRegister, "", map[string]string{"username": "carol", "password": "short"})
	assert.Equal(t, stdhttp.StatusBadRequest, weak.Code)

	token := s.login(t, "bob")
	assert.Equal(t, stdhttp.StatusForbidden, s.do(t, stdhttp.MethodGet, presets.RouteAdminUsers, token, nil).Code)
}

func TestExpiredTokenIsAnonymous(t *testing.T) {
	s := newTestServer(t, 0)
	s.createIdentity(t, "alice", identity.RoleUser)
	token := s.login(t, "alice")

	s.clock.Advance(time.Hour + time.Second)

	rec := s.do(t, stdhttp.MethodGet, presets.RouteMe, token, nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
}

func TestStoreUnavailable(t *testing.T) {
	s := newTestServer(t, 0)
	s.createIdentity(t, "alice", identity.RoleUser)
	token := s.login(t, "alice")

	require.NoError(t, s.store.Close())

	rec := s.do(t, stdhttp.MethodGet, presets.RouteMe, token, nil)
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service temporarily unavailable", decode(t, rec)["error"])

	login := s.do(t, stdhttp.MethodPost, presets.RouteLogin, "", map[string]string{"username": "alice", "password": testPassword})
	assert.Equal(t, stdhttp.StatusServiceUnavailable, login.Code)

	health := s.do(t, stdhttp.MethodGet, presets.RouteHealth, "", nil)
	assert.Equal(t, stdhttp.StatusServiceUnavailable, health.Code)
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, 3)
	creds := map[string]string{"username": "nobody", "password": testPassword}

	for i := 0; i < 3; i++ {
		assert.Equal(t, stdhttp.StatusUnauthorized, s.do(t, stdhttp.MethodPost, presets.RouteLogin, "", creds).Code)
	}

	rec := s.do(t, stdhttp.MethodPost, presets.RouteLogin, "", creds)
	assert.Equal(t, stdhttp.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestMetricsAndAudit(t *testing.T) {
	s := newTestServer(t, 0)
	s.createIdentity(t, "alice", identity.RoleUser)
	token := s.login(t, "alice")
	s.do(t, stdhttp.MethodGet, presets.RouteAdminUsers, token, nil)
	s.recorder.Close()

	rec := s.do(t, stdhttp.MethodGet, presets.RouteMetrics, "", nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	metricsBody := rec.Body.String()
	assert.Contains(t, metricsBody, `projectsvc_auth_events_total{kind="login",result="success"} 1`)
	assert.Contains(t, metricsBody, `projectsvc_auth_events_total{kind="access",result="forbidden"} 1`)
	assert.Contains(t, metricsBody, `projectsvc_http_requests_total{method="GET",route="/api/admin/users",status="403"} 1`)

	require.Len(t, s.auditSink.records, 2)
	results := map[string]bool{}
	for i := 0; i < 2; i++ {
		r := <-s.auditSink.records
		results[r.EventType+"/"+r.Result] = true
	}
	assert.True(t, results["login/success"])
	assert.True(t, results["access/forbidden"])
}

func TestServerStages(t *testing.T) {
	s, err := NewServer(&ServerDependencies{
		Logger:        zerolog.Nop(),
		Authenticator: auth.NewAuthenticator(nil, nil, nil, zerolog.Nop()),
		Guard:         auth.NewGuard(rbac.MustNew(presets.ProjectService()), nil, zerolog.Nop()),
		Metrics:       metrics.New(prometheus.NewRegistry()),
	})
	require.NoError(t, err)

	assert.Equal(t, []StageName{
		StageRequestID,
		StageSecurityHeaders,
		StageAccessLog,
		StageRecover,
		StageBodyLimit,
		StageMetrics,
		StageAuthenticate,
		StageRateLimit,
		StageAuthorize,
	}, s.Stages())
}

func TestDebugProfilesAreAdminOnly(t *testing.T) {
	s := newTestServerWithConfig(t, 0, &config.Config{Server: config.ServerConfig{EnablePprof: true}})
	s.createIdentity(t, "root", identity.RoleAdmin)
	s.createIdentity(t, "alice", identity.RoleUser)

	const path = "/debug/pprof/goroutine?debug=1"

	rec := s.do(t, stdhttp.MethodGet, path, "", nil)
	assert.Equal(t, stdhttp.StatusUnauthorized, rec.Code)

	rec = s.do(t, stdhttp.MethodGet, path, s.login(t, "alice"), nil)
	assert.Equal(t, stdhttp.StatusForbidden, rec.Code)

	rec = s.do(t, stdhttp.MethodGet, path, s.login(t, "root"), nil)
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goroutine profile")
}

func TestDebugProfilesDisabledByDefault(t *testing.T) {
	s := newTestServer(t, 0)
	s.createIdentity(t, "root", identity.RoleAdmin)

	rec := s.do(t, stdhttp.MethodGet, "/debug/pprof/heap", s.login(t, "root"), nil)
	assert.Equal(t, stdhttp.StatusNotFound, rec.Code)
}
