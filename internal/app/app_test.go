package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/rowguard/internal/access"
	"github.com/odyssey-erp/rowguard/internal/documents"
	"github.com/odyssey-erp/rowguard/internal/guard"
	"github.com/odyssey-erp/rowguard/internal/identity"
	"github.com/odyssey-erp/rowguard/internal/observability"
	"github.com/odyssey-erp/rowguard/internal/policy"
	"github.com/odyssey-erp/rowguard/internal/shared"
	"github.com/odyssey-erp/rowguard/internal/store"
	"github.com/odyssey-erp/rowguard/internal/store/storetest"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, "rowguard_session", cfg.SessionCookie)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.True(t, cfg.AuditDenials)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUDIT_DENIALS", "false")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "30")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.AuditDenials)
	assert.Equal(t, 30, cfg.RateLimitPerMinute)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("RATE_LIMIT_PER_MINUTE", "ten")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestNewLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&Config{LogFormat: "json", LogLevel: "debug"}, &buf).Debug("hello", "k", "v")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])

	buf.Reset()
	newLogger(&Config{LogFormat: "pretty", LogLevel: "warn"}, &buf).Info("dropped")
	assert.Empty(t, buf.String())
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv(testModeEnv, "")
	RefreshTestMode()
	assert.False(t, InTestMode())
}

type ownerLookup map[int64]int64

func (l ownerLookup) Access(ctx context.Context, documentID, userID int64) (documents.Access, error) {
	owner, ok := l[documentID]
	if !ok {
		return documents.Access{}, store.ErrNotFound
	}
	return documents.Access{OwnerID: owner}, nil
}

func (l ownerLookup) GrantDocument(ctx context.Context, grantID int64) (int64, error) {
	return 0, store.ErrNotFound
}

type routerFixture struct {
	handler  http.Handler
	sessions *shared.SessionManager
	store    *storetest.Session
	metrics  *observability.Metrics
}

func newRouterFixture(t *testing.T, docs ...documents.Document) *routerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sessions := shared.NewSessionManager(client, "rowguard_session", "secret", time.Hour, false)
	st := storetest.NewSession()
	storetest.Serve(st, storetest.NewView("documents", docs...))
	storetest.Serve(st, storetest.NewView[documents.Grant]("grants"))

	lookup := ownerLookup{}
	for _, d := range docs {
		lookup[d.ID] = d.OwnerID
	}
	reg := policy.NewRegistry()
	require.NoError(t, documents.RegisterPolicies(reg, lookup))

	metrics := observability.NewMetrics()
	handler := NewRouter(RouterParams{
		Config:           &Config{RateLimitPerMinute: 1000, AppRequestTimeout: time.Second},
		SessionManager:   sessions,
		Policies:         reg,
		NewStore:         func() store.Session { return st },
		GuardOptions:     []guard.Option{guard.WithObserver(metrics)},
		DocumentsHandler: documents.NewHandler(nil, documents.NewService()),
		Metrics:          metrics,
	})
	return &routerFixture{handler: handler, sessions: sessions, store: st, metrics: metrics}
}

// login stores claims in a fresh session and returns its cookie.
func (f *routerFixture) login(t *testing.T, claims ...identity.Claim) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetClaims(claims)
	rr := httptest.NewRecorder()
	require.NoError(t, f.sessions.Commit(context.Background(), rr, req, sess))
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func (f *routerFixture) do(method, target, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	f := newRouterFixture(t)
	rr := f.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestSecurityHeaders(t *testing.T) {
	f := newRouterFixture(t)
	rr := f.do(http.MethodGet, "/documents", "", nil)
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestAnonymousCannotWrite(t *testing.T) {
	f := newRouterFixture(t)
	rr := f.do(http.MethodPost, "/documents", `{"title":"x"}`, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Zero(t, f.store.Count("add"))
}

func TestSessionClaimsDriveAuthorization(t *testing.T) {
	f := newRouterFixture(t, documents.Document{ID: 1, OwnerID: 10})
	owner := f.login(t, identity.Claim{Type: identity.ClaimNameIdentifier, Value: "10"})
	stranger := f.login(t, identity.Claim{Type: identity.ClaimNameIdentifier, Value: "11"})

	rr := f.do(http.MethodDelete, "/documents/1", "", stranger)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(http.MethodDelete, "/documents/1", "", owner)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, 1, f.store.Count("remove"))
}

func TestSuperAdminSessionBypasses(t *testing.T) {
	f := newRouterFixture(t, documents.Document{ID: 1, OwnerID: 10})
	admin := f.login(t,
		identity.Claim{Type: identity.ClaimNameIdentifier, Value: "99"},
		identity.Claim{Type: identity.ClaimRole, Value: "super admin"},
	)

	rr := f.do(http.MethodPut, "/documents/1", `{"title":"moderated"}`, admin)
	require.Equal(t, http.StatusOK, rr.Code)

	body := scrapeMetrics(t, f)
	assert.Contains(t, body, `rowguard_guard_decisions_total{entity="documents.Document",operation="update",outcome="bypass"} 1`)
}

func TestDeniedWriteIsCounted(t *testing.T) {
	f := newRouterFixture(t, documents.Document{ID: 1, OwnerID: 10})
	stranger := f.login(t, identity.Claim{Type: identity.ClaimNameIdentifier, Value: "11"})
	f.do(http.MethodDelete, "/documents/1", "", stranger)

	body := scrapeMetrics(t, f)
	assert.Contains(t, body, `outcome="denied"} 1`)
	assert.Contains(t, body, `rowguard_http_requests_total{code="403",route="/documents/{id}"} 1`)
}

func TestIdentityMiddlewareWithoutSession(t *testing.T) {
	var got identity.Facts
	h := IdentityMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = identity.FactsFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, got)
	assert.Zero(t, got.ID())
}

func TestUnitMiddlewareDiscardsUnsavedWork(t *testing.T) {
	st := storetest.NewSession()
	reg := policy.NewRegistry()
	var seen *guard.Unit
	h := UnitMiddleware(func() store.Session { return st }, reg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = guard.UnitFromContext(r.Context())
		require.NotNil(t, seen)
		require.NoError(t, seen.Require(access.Owner))
		require.NoError(t, seen.Commands().Insert(r.Context(), &documents.Document{OwnerID: 1}))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, 1, st.Count("add"))
	assert.Zero(t, st.Staged, "unit must discard on close")
	assert.Zero(t, st.Commits)
}

func scrapeMetrics(t *testing.T, f *routerFixture) string {
	t.Helper()
	rr := f.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}
