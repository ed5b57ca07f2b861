package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-auth/auth"
	"github.com/jrsteele09/go-session-auth/internal/config"
	"github.com/jrsteele09/go-session-auth/internal/metrics"
	"github.com/jrsteele09/go-session-auth/password"
	"github.com/jrsteele09/go-session-auth/server"
	"github.com/jrsteele09/go-session-auth/token"
	"github.com/jrsteele09/go-session-auth/users"
	fakeuserrepo "github.com/jrsteele09/go-session-auth/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
)

const (
	testUserName     = "Test User"
	testUserEmail    = "user@example.com"
	testUserPassword = "test123"
	registerBody     = `{"name":"Test User","email":"user@example.com","password":"test123"}`
	loginBody        = `{"email":"user@example.com","password":"test123"}`
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testFixture struct {
	userRepo users.UserRepo
	fakeRepo *fakeuserrepo.FakeUserRepo
	clock    *clock
	server   *server.Server
}

type fixtureOption func(*testFixture)

func withUserRepo(repo users.UserRepo) fixtureOption {
	return func(f *testFixture) { f.userRepo = repo }
}

func setupTestFixture(t *testing.T, opts ...fixtureOption) *testFixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("COOKIE_SECURE", "")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com")

	fake := fakeuserrepo.NewFakeUserRepo()
	f := &testFixture{
		userRepo: fake,
		fakeRepo: fake,
		clock:    &clock{now: time.Now().UTC().Truncate(time.Second)},
	}
	for _, opt := range opts {
		opt(f)
	}

	codec, err := token.NewCodec([]byte("test-secret"), token.DefaultTTL)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheus()
	recorder.RegisterMetrics(reg)

	authService, err := auth.NewAuthService(
		f.userRepo,
		password.NewHasher(password.Params{Time: 1, MemoryKiB: 1024, Threads: 1}),
		codec,
		auth.WithNowTime(f.clock.Now),
		auth.WithMetrics(recorder),
	)
	require.NoError(t, err)

	f.server, err = server.New(config.New(), authService, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	require.NoError(t, err)
	return f
}

func (f *testFixture) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec.Result()
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == server.TokenCookieName {
			return c
		}
	}
	t.Fatalf("response has no %q cookie", server.TokenCookieName)
	return nil
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func requireDetail(t *testing.T, resp *http.Response, status int, detail string) {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	require.Equal(t, map[string]any{"detail": detail}, decodeBody(t, resp))
}

func TestFullSessionFlow(t *testing.T) {
	f := setupTestFixture(t)
	ts := httptest.NewServer(f.server)
	defer ts.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	post := func(path, body string) *http.Response {
		resp, err := client.Post(ts.URL+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		return resp
	}
	get := func(path string) *http.Response {
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		return resp
	}

	resp := post(server.RouteAuthRegister, registerBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	registered := decodeBody(t, resp)
	id, ok := registered["id"].(string)
	require.True(t, ok)
	_, err = uuid.Parse(id)
	require.NoError(t, err)

	resp = get(server.RouteAuthMe)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, map[string]any{"id": id, "name": testUserName, "email": testUserEmail}, decodeBody(t, resp))

	resp = get(server.RouteAuthLogout)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	requireDetail(t, get(server.RouteAuthMe), http.StatusUnauthorized, "Not authenticated")

	resp = post(server.RouteAuthLogin, loginBody)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, map[string]any{"id": id, "name": testUserName, "email": testUserEmail}, decodeBody(t, resp))

	resp = get(server.RouteAuthMe)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, id, decodeBody(t, resp)["id"])
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(t, http.MethodPost, server.RouteAuthRegister, registerBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.do(t, http.MethodPost, server.RouteAuthRegister, `{"name":"Other","email":"user@example.com","password":"x"}`)
	require.Empty(t, resp.Cookies())
	requireDetail(t, resp, http.StatusBadRequest, "User already exists")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := setupTestFixture(t)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, server.RouteAuthRegister, registerBody).StatusCode)

	for name, body := range map[string]string{
		"wrong password": `{"email":"user@example.com","password":"nope"}`,
		"unknown email":  `{"email":"ghost@example.com","password":"test123"}`,
		"empty password": `{"email":"user@example.com","password":""}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, server.RouteAuthLogin, body)
			require.Empty(t, resp.Cookies())
			requireDetail(t, resp, http.StatusUnauthorized, "Invalid credentials")
		})
	}
}

func TestMe_Failures(t *testing.T) {
	f := setupTestFixture(t)
	resp := f.do(t, http.MethodPost, server.RouteAuthRegister, registerBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	valid := sessionCookie(t, resp)

	t.Run("no cookie", func(t *testing.T) {
		requireDetail(t, f.do(t, http.MethodGet, server.RouteAuthMe, ""), http.StatusUnauthorized, "Not authenticated")
	})

	t.Run("empty cookie", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, server.RouteAuthMe, "", &http.Cookie{Name: server.TokenCookieName, Value: ""})
		requireDetail(t, resp, http.StatusUnauthorized, "Not authenticated")
	})

	t.Run("garbage cookie", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, server.RouteAuthMe, "", &http.Cookie{Name: server.TokenCookieName, Value: "garbage"})
		requireDetail(t, resp, http.StatusUnauthorized, "Invalid token")
	})

	t.Run("expired cookie", func(t *testing.T) {
		f.clock.Advance(token.DefaultTTL + time.Second)
		t.Cleanup(func() { f.clock.Advance(-(token.DefaultTTL + time.Second)) })
		resp := f.do(t, http.MethodGet, server.RouteAuthMe, "", valid)
		requireDetail(t, resp, http.StatusUnauthorized, "Expired token")
	})
}

func TestMe_DeletedUser(t *testing.T) {
	f := setupTestFixture(t)
	resp := f.do(t, http.MethodPost, server.RouteAuthRegister, registerBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	cookie := sessionCookie(t, resp)
	id := uuid.MustParse(decodeBody(t, resp)["id"].(string))

	require.NoError(t, f.fakeRepo.Delete(id))

	requireDetail(t, f.do(t, http.MethodGet, server.RouteAuthMe, "", cookie), http.StatusUnauthorized, "User not found")
}

func TestRequestValidation(t *testing.T) {
	f := setupTestFixture(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"invalid email", server.RouteAuthRegister, `{"name":"A","email":"not-an-email","password":"x"}`},
		{"missing name", server.RouteAuthRegister, `{"email":"a@example.com","password":"x"}`},
		{"empty password", server.RouteAuthRegister, `{"name":"A","email":"a@example.com","password":""}`},
		{"wrong type", server.RouteAuthLogin, `{"email":"a@example.com","password":123}`},
		{"malformed json", server.RouteAuthLogin, `{"email":`},
		{"empty body", server.RouteAuthLogin, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			body := decodeBody(t, resp)
			require.NotEmpty(t, body["detail"])
		})
	}
	require.Equal(t, 0, f.fakeRepo.Count())
}

func TestSessionCookieAttributes(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(t, http.MethodPost, server.RouteAuthRegister, registerBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	cookie := sessionCookie(t, resp)
	require.NotEmpty(t, cookie.Value)
	require.Equal(t, "/", cookie.Path)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.False(t, cookie.Secure)
	require.Equal(t, int(token.DefaultTTL/time.Second), cookie.MaxAge)
	require.WithinDuration(t, f.clock.Now().Add(token.DefaultTTL), cookie.Expires, time.Second)

	raw := resp.Header.Get("Set-Cookie")
	require.NotContains(t, raw, testUserPassword)
}

func TestSessionCookie_Secure(t *testing.T) {
	t.Run("forwarded https", func(t *testing.T) {
		f := setupTestFixture(t)
		req := httptest.NewRequest(http.MethodPost, server.RouteAuthRegister, strings.NewReader(registerBody))
		req.Header.Set("X-Forwarded-Proto", "https")
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, req)
		require.True(t, sessionCookie(t, rec.Result()).Secure)
	})

	t.Run("forced by config", func(t *testing.T) {
		f := setupTestFixture(t)
		t.Setenv("COOKIE_SECURE", "true")
		resp := f.do(t, http.MethodPost, server.RouteAuthRegister, registerBody)
		require.True(t, sessionCookie(t, resp).Secure)
	})
}

func TestLogout_ClearsCookie(t *testing.T) {
	f := setupTestFixture(t)

	for _, withSession := range []bool{false, true} {
		var cookies []*http.Cookie
		if withSession {
			cookies = append(cookies, &http.Cookie{Name: server.TokenCookieName, Value: "anything"})
		}
		resp := f.do(t, http.MethodGet, server.RouteAuthLogout, "", cookies...)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		cleared := sessionCookie(t, resp)
		require.Empty(t, cleared.Value)
		require.Equal(t, -1, cleared.MaxAge)
		require.Equal(t, "/", cleared.Path)
		require.True(t, cleared.HttpOnly)
		require.Equal(t, http.SameSiteLaxMode, cleared.SameSite)
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := server.TokenFromRequest(req)
	require.False(t, ok)

	req.AddCookie(&http.Cookie{Name: server.TokenCookieName, Value: "abc"})
	raw, ok := server.TokenFromRequest(req)
	require.True(t, ok)
	require.Equal(t, "abc", raw)
}

func TestResponsesNeverExposePassword(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(t, http.MethodPost, server.RouteAuthRegister, registerBody)
	cookie := sessionCookie(t, resp)
	resp.Body.Close()

	for _, resp := range []*http.Response{
		f.do(t, http.MethodPost, server.RouteAuthLogin, loginBody),
		f.do(t, http.MethodGet, server.RouteAuthMe, "", cookie),
	} {
		body := decodeBody(t, resp)
		require.ElementsMatch(t, []string{"id", "name", "email"}, keys(body))
	}
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// outageRepo fails every call.
type outageRepo struct{}

var errOutage = errors.New("connection refused")

func (outageRepo) GetByEmail(context.Context, string) (*users.User, error) { return nil, errOutage }
func (outageRepo) GetByID(context.Context, uuid.UUID) (*users.User, error) { return nil, errOutage }
func (outageRepo) Insert(context.Context, string, string, string) (*users.User, error) {
	return nil, errOutage
}
func (outageRepo) UpdatePasswordHash(context.Context, uuid.UUID, string) error { return errOutage }

func TestStoreOutage(t *testing.T) {
	f := setupTestFixture(t, withUserRepo(outageRepo{}))

	resp := f.do(t, http.MethodPost, server.RouteAuthRegister, registerBody)
	requireDetail(t, resp, http.StatusInternalServerError, "Internal server error")

	resp = f.do(t, http.MethodPost, server.RouteAuthLogin, loginBody)
	requireDetail(t, resp, http.StatusInternalServerError, "Internal server error")
}

func TestHealthAndMetrics(t *testing.T) {
	f := setupTestFixture(t)

	resp := f.do(t, http.MethodGet, server.RouteHealth, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", decodeBody(t, resp)["status"])

	f.do(t, http.MethodGet, server.RouteAuthMe, "").Body.Close()

	resp = f.do(t, http.MethodGet, server.RouteMetrics, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	scraped, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(scraped), `auth_operations_total{operation="resolve",outcome="not_authenticated"} 1`)
}

func TestCorsPreflight(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodOptions, server.RouteAuthLogin, nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	req = httptest.NewRequest(http.MethodOptions, server.RouteAuthLogin, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutes(t *testing.T) {
	f := setupTestFixture(t)

	require.Equal(t, []string{
		"POST " + server.RouteAuthRegister,
		"POST " + server.RouteAuthLogin,
		"GET " + server.RouteAuthLogout,
		"GET " + server.RouteAuthMe,
		"GET " + server.RouteHealth,
		"GET " + server.RouteMetrics,
		"OPTIONS /auth/",
	}, f.server.Routes())
}

func TestUnknownRouteAndMethod(t *testing.T) {
	f := setupTestFixture(t)

	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/nope", "").StatusCode)
	require.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodGet, server.RouteAuthLogin, "").StatusCode)
}

func TestRecoverMiddleware(t *testing.T) {
	f := setupTestFixture(t)
	handler := server.ChainMiddleware(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}, f.server.RecoverMiddleware)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	requireDetail(t, rec.Result(), http.StatusInternalServerError, "Internal server error")
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := server.New(config.New(), nil, nil)
	require.Error(t, err)
}
