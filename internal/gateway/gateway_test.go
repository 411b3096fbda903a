package gateway_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aka0kuro/hostberry-sub000/internal/audit"
	"github.com/aka0kuro/hostberry-sub000/internal/auth"
	"github.com/aka0kuro/hostberry-sub000/internal/gateway"
	"github.com/aka0kuro/hostberry-sub000/internal/models"
	"github.com/aka0kuro/hostberry-sub000/internal/security"
	"github.com/aka0kuro/hostberry-sub000/internal/store"
	pkgauth "github.com/aka0kuro/hostberry-sub000/pkg/auth"
	pkghttp "github.com/aka0kuro/hostberry-sub000/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	gw       *gateway.Gateway
	tokens   *auth.TokenService
	store    *store.MemoryStore
	auditOut *bytes.Buffer
}

func newTestEnv(t *testing.T, maxRequests int) *testEnv {
	t.Helper()

	hash, err := pkgauth.HashPassword("correct-password", pkgauth.MinBcryptCost)
	require.NoError(t, err)

	principalStore := store.NewMemoryStore()
	principalStore.Put(&models.Principal{
		Username:     "admin",
		PasswordHash: hash,
		Active:       true,
		Admin:        true,
	})
	principalStore.Put(&models.Principal{
		Username:     "ghost",
		PasswordHash: hash,
		Active:       false,
	})

	logger := slog.Default()
	auditOut := &bytes.Buffer{}

	tokens := auth.NewTokenService([]byte("test-secret-32-characters-long!!"), 1*time.Hour)
	guard := security.NewLoginGuard(principalStore, security.LoginGuardConfig{
		MaxAttempts:   3,
		BlockDuration: 60 * time.Second,
	}, logger)
	limiter := security.NewRateLimiter(security.RateLimiterConfig{
		Enabled:     true,
		MaxRequests: maxRequests,
		Window:      60 * time.Second,
	}, logger)
	filter := security.NewAccessFilter(security.AccessFilterConfig{
		Blacklist: []string{"10.9.9.9"},
	})

	gw := gateway.New(filter, limiter, guard, tokens, principalStore,
		audit.NewLog(auditOut, logger), logger, &pkghttp.IPConfig{}, "admin")

	return &testEnv{gw: gw, tokens: tokens, store: principalStore, auditOut: auditOut}
}

func auditedEventTypes(t *testing.T, out *bytes.Buffer) []string {
	t.Helper()
	var types []string
	for _, line := range strings.Split(strings.TrimRight(out.String(), "\n"), "\n") {
		if line == "" {
			continue
		}
		var event audit.Event
		require.NoError(t, json.Unmarshal([]byte(line), &event))
		types = append(types, event.EventType)
	}
	return types
}

func screenRequest(env *testEnv, remoteAddr string) *httptest.ResponseRecorder {
	handler := env.gw.Screen(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestGateway_Screen_BlacklistedDeniedBeforeRateLimit(t *testing.T) {
	env := newTestEnv(t, 1)

	// Far more hits than the rate window allows: every one must be a
	// blacklist denial, never a rate-limit rejection
	for i := 0; i < 5; i++ {
		w := screenRequest(env, "10.9.9.9:1234")
		assert.Equal(t, http.StatusForbidden, w.Code)
	}

	for _, eventType := range auditedEventTypes(t, env.auditOut) {
		assert.Equal(t, audit.EventAccessDenied, eventType)
	}
}

func TestGateway_Screen_RateLimitsAfterWindowFills(t *testing.T) {
	env := newTestEnv(t, 2)

	assert.Equal(t, http.StatusOK, screenRequest(env, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, screenRequest(env, "10.0.0.1:1234").Code)

	w := screenRequest(env, "10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// A different client is unaffected
	assert.Equal(t, http.StatusOK, screenRequest(env, "10.0.0.2:1234").Code)

	types := auditedEventTypes(t, env.auditOut)
	require.Len(t, types, 1)
	assert.Equal(t, audit.EventRateLimited, types[0])
}

func TestGateway_Login_Success(t *testing.T) {
	env := newTestEnv(t, 100)

	result, err := env.gw.Login(context.Background(), "admin", "correct-password", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, 3600, result.ExpiresIn)
	assert.True(t, result.MustChangePassword, "default admin account must be flagged")

	claims, err := env.tokens.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.True(t, claims.Admin)

	types := auditedEventTypes(t, env.auditOut)
	require.Len(t, types, 1)
	assert.Equal(t, audit.EventLoginSuccess, types[0])
}

func TestGateway_Login_FailureIsAudited(t *testing.T) {
	env := newTestEnv(t, 100)

	_, err := env.gw.Login(context.Background(), "admin", "wrong", "10.0.0.1")
	require.Error(t, err)

	types := auditedEventTypes(t, env.auditOut)
	require.Len(t, types, 1)
	assert.Equal(t, audit.EventLoginFailed, types[0])
}

func TestGateway_Login_DisabledPrincipal(t *testing.T) {
	env := newTestEnv(t, 100)

	_, err := env.gw.Login(context.Background(), "ghost", "correct-password", "10.0.0.1")
	assert.Equal(t, models.ErrAccountDisabled, err)

	types := auditedEventTypes(t, env.auditOut)
	require.Len(t, types, 1)
	assert.Equal(t, audit.EventPrincipalDisabled, types[0])
}

func authenticateRequest(env *testEnv, authHeader string) (*httptest.ResponseRecorder, *models.Principal) {
	var seen *models.Principal
	handler := env.gw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = gateway.PrincipalFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/auth/session", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, seen
}

func TestGateway_Authenticate_ValidToken(t *testing.T) {
	env := newTestEnv(t, 100)

	token, err := env.tokens.Issue("admin", true)
	require.NoError(t, err)

	w, principal := authenticateRequest(env, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, principal)
	assert.Equal(t, "admin", principal.Username)
}

func TestGateway_Authenticate_MissingOrMalformedHeader(t *testing.T) {
	env := newTestEnv(t, 100)

	w, _ := authenticateRequest(env, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = authenticateRequest(env, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateway_Authenticate_DisabledPrincipalWithValidToken(t *testing.T) {
	env := newTestEnv(t, 100)

	// Structurally valid token for a disabled account
	token, err := env.tokens.Issue("ghost", false)
	require.NoError(t, err)

	w, _ := authenticateRequest(env, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	types := auditedEventTypes(t, env.auditOut)
	require.Len(t, types, 1)
	assert.Equal(t, audit.EventPrincipalDisabled, types[0])
}

func TestGateway_Authenticate_ForgedToken(t *testing.T) {
	env := newTestEnv(t, 100)

	forger := auth.NewTokenService([]byte("attacker-controlled-secret!!!!!!"), 1*time.Hour)
	token, err := forger.Issue("admin", true)
	require.NoError(t, err)

	w, _ := authenticateRequest(env, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	types := auditedEventTypes(t, env.auditOut)
	require.Len(t, types, 1)
	assert.Equal(t, audit.EventTokenRejected, types[0])
}

func TestGateway_RequireAdmin(t *testing.T) {
	env := newTestEnv(t, 100)

	handler := env.gw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("PUT", "/access/blacklist", nil)
	req = req.WithContext(gateway.WithPrincipal(req.Context(), &models.Principal{Username: "bob", Active: true}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest("PUT", "/access/blacklist", nil)
	req = req.WithContext(gateway.WithPrincipal(req.Context(), &models.Principal{Username: "admin", Active: true, Admin: true}))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
