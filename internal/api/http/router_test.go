package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-portal/internal/api/http/handlers"
	"github.com/spec-kit/onboarding-portal/internal/auth"
	"github.com/spec-kit/onboarding-portal/internal/events"
	"github.com/spec-kit/onboarding-portal/internal/gateway"
	"github.com/spec-kit/onboarding-portal/internal/observability"
	"github.com/spec-kit/onboarding-portal/internal/service"
	"github.com/spec-kit/onboarding-portal/internal/session"
)

const (
	sessionCookie = "portal_session"
	idCookie      = "portal_sid"
)

// fakeAPI is a minimal backend. me holds the profile returned by /auth/me;
// meStatus overrides its HTTP status.
type fakeAPI struct {
	mu       sync.Mutex
	me       map[string]any
	meStatus int
	uploads  []map[string]string
	seenAuth []string
}

func (f *fakeAPI) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/app")
	f.seenAuth = append(f.seenAuth, path+" "+r.Header.Get("Authorization"))

	write := func(status int, body map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
	switch path {
	case "/auth/token":
		write(200, map[string]any{"status": "success", "data": map[string]any{"accessToken": "client-tok"}})
	case "/auth/login":
		write(200, map[string]any{"status": "success", "data": map[string]any{"accessToken": "tok123"}})
	case "/auth/me":
		if f.meStatus != 0 {
			write(f.meStatus, map[string]any{"status": "error", "message": "Token expired"})
			return
		}
		write(200, map[string]any{"status": "success", "data": f.me})
	case "/business-verification-documents/upload":
		_ = r.ParseMultipartForm(1 << 20)
		fields := map[string]string{}
		for k, v := range r.MultipartForm.Value {
			fields[k] = v[0]
		}
		for k, v := range r.MultipartForm.File {
			fields[k] = v[0].Filename
		}
		f.uploads = append(f.uploads, fields)
		write(200, map[string]any{"status": "success"})
	default:
		write(404, map[string]any{"status": "error", "message": "not found"})
	}
}

type testEnv struct {
	app     *fiber.App
	api     *fakeAPI
	backend *session.MemoryBackend
	metrics *observability.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	api := &fakeAPI{me: map[string]any{
		"id":            "u1",
		"email":         "ama@example.com",
		"businessAdmin": map[string]any{"id": "ba1", "businessId": "b1", "name": "Ama"},
	}}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	transport, err := gateway.NewTransport(gateway.Options{BaseURL: srv.URL + "/api/v1/app", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	backend := session.NewMemoryBackend()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	clientTokens := service.NewClientTokens(service.ClientCredentials{ClientID: "portal", ClientSecret: "s"}, nil)

	sessions := auth.NewSessionMiddleware(backend, transport, auth.CookieConfig{
		SessionName:           sessionCookie,
		IDName:                idCookie,
		SignOutOnUnauthorized: true,
	}, dispatcher, zap.NewNop())

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("portal", "test", nil, metrics),
		Auth: handlers.NewAuthHandler(service.NewAuthService(service.AuthDependencies{
			ClientTokens: clientTokens,
			TokenManager: tokens,
			Dispatcher:   dispatcher,
		}), sessions),
		Dashboard: handlers.NewDashboardHandler(tokens, zap.NewNop()),
		Onboarding: handlers.NewOnboardingHandler(service.NewOnboardingService(service.OnboardingDependencies{
			ClientTokens: clientTokens,
			Dispatcher:   dispatcher,
		})),
		Sessions: sessions,
	})
	return &testEnv{app: app, api: api, backend: backend, metrics: metrics}
}

type result struct {
	status  int
	body    map[string]any
	header  nethttp.Header
	cookies []*nethttp.Cookie
}

func (e *testEnv) do(t *testing.T, req *nethttp.Request, cookies ...*nethttp.Cookie) result {
	t.Helper()
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	return result{status: resp.StatusCode, body: body, header: resp.Header, cookies: resp.Cookies()}
}

func jsonRequest(method, path string, body any) *nethttp.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func findCookie(cookies []*nethttp.Cookie, name string) *nethttp.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func errorField(body map[string]any, field string) string {
	e, _ := body["error"].(map[string]any)
	s, _ := e[field].(string)
	return s
}

// login signs in and returns the cookies a browser would keep.
func (e *testEnv) login(t *testing.T) []*nethttp.Cookie {
	t.Helper()
	res := e.do(t, jsonRequest("POST", "/api/auth/login", map[string]string{"email": "ama@example.com", "password": "pw"}))
	if res.status != 200 {
		t.Fatalf("login status %d body %v", res.status, res.body)
	}
	sid := findCookie(res.cookies, idCookie)
	sess := findCookie(res.cookies, sessionCookie)
	if sid == nil || sess == nil || sess.Value == "" {
		t.Fatalf("expected both cookies, got %+v", res.cookies)
	}
	if res.body["redirect"] != auth.DashboardPath || res.header.Get(handlers.RedirectHeader) != auth.DashboardPath {
		t.Fatalf("expected redirect to dashboard, got %v / %q", res.body["redirect"], res.header.Get(handlers.RedirectHeader))
	}
	return []*nethttp.Cookie{sid, sess}
}

func TestLoginThenDashboardRedirectsByRole(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t)

	res := env.do(t, httptest.NewRequest("GET", "/api/dashboard", nil), cookies...)
	if res.status != 200 {
		t.Fatalf("dashboard status %d body %v", res.status, res.body)
	}
	if res.body["redirect"] != auth.BusinessDashboardPath {
		t.Fatalf("expected business dashboard redirect, got %v", res.body["redirect"])
	}

	res = env.do(t, httptest.NewRequest("GET", "/api/auth/session", nil), cookies...)
	data, _ := res.body["data"].(map[string]any)
	if data["accessToken"] != "tok123" {
		t.Fatalf("expected session access token, got %v", res.body)
	}
}

func TestUnauthorizedResetsSessionEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t)
	sid := cookies[0].Value

	env.api.mu.Lock()
	env.api.meStatus = 401
	env.api.mu.Unlock()

	req := httptest.NewRequest("GET", "/api/dashboard", nil)
	req.Header.Set(auth.PageHeader, "/dashboard/business")
	res := env.do(t, req, cookies...)

	if res.status != 401 || errorField(res.body, "code") != "UNAUTHORIZED" {
		t.Fatalf("expected 401, got %d %v", res.status, res.body)
	}
	if res.body["redirect"] != "/" || res.header.Get(handlers.RedirectHeader) != "/" {
		t.Fatalf("expected redirect to login, got %v", res.body["redirect"])
	}
	if c := findCookie(res.cookies, sessionCookie); c == nil || c.Value != "" {
		t.Fatalf("expected session cookie to be expired, got %+v", c)
	}
	storage := env.backend.Session(sid)
	for _, slot := range []string{session.SlotAuth, session.SlotUser, session.SlotOnboarding} {
		if storage.Has(slot) {
			t.Fatalf("slot %s should be cleared", slot)
		}
	}
}

func TestUnauthorizedOnLoginPageKeepsSession(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t)

	env.api.mu.Lock()
	env.api.meStatus = 401
	env.api.mu.Unlock()

	req := httptest.NewRequest("GET", "/api/dashboard", nil)
	req.Header.Set(auth.PageHeader, "/")
	res := env.do(t, req, cookies...)

	if res.status != 401 {
		t.Fatalf("expected 401, got %d", res.status)
	}
	if _, ok := res.body["redirect"]; ok {
		t.Fatalf("no navigation expected on the login page, got %v", res.body["redirect"])
	}
	if c := findCookie(res.cookies, sessionCookie); c != nil {
		t.Fatalf("session cookie must be left alone, got %+v", c)
	}
	if !env.backend.Session(cookies[0].Value).Has(session.SlotAuth) {
		t.Fatalf("stores must not be cleared on the login page")
	}
}

func TestDashboardWithoutSessionRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)
	res := env.do(t, httptest.NewRequest("GET", "/api/dashboard/business", nil))
	if res.status != 401 || res.body["redirect"] != "/" {
		t.Fatalf("expected 401 with login redirect, got %d %v", res.status, res.body)
	}
	for _, call := range env.api.seenAuth {
		if strings.HasPrefix(call, "/auth/me") {
			t.Fatalf("no user fetch expected without a session, saw %q", call)
		}
	}
}

func TestExpiredSessionCookieForgetsStoredUser(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t)
	sidOnly := cookies[0]

	res := env.do(t, httptest.NewRequest("GET", "/api/dashboard", nil), sidOnly)
	if res.status != 401 || res.body["redirect"] != "/" {
		t.Fatalf("expected 401 with login redirect, got %d %v", res.status, res.body)
	}
	storage := env.backend.Session(sidOnly.Value)
	if storage.Has(session.SlotUser) {
		t.Fatal("stale user kept after failed bootstrap")
	}
	stores, err := session.Open(context.Background(), storage)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := stores.Auth.AccessToken(); ok {
		t.Fatal("stale access token kept after failed bootstrap")
	}

	res = env.do(t, httptest.NewRequest("GET", "/api/auth/me", nil), sidOnly)
	if res.status != 401 {
		t.Fatalf("expected 401 from /api/auth/me, got %d %v", res.status, res.body)
	}
	if _, ok := res.body["data"]; ok {
		t.Fatalf("no user expected, got %v", res.body["data"])
	}
}

func TestMeBootstrapsFromSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t)

	res := env.do(t, httptest.NewRequest("GET", "/api/auth/me", nil), cookies...)
	if res.status != 200 {
		t.Fatalf("me status %d body %v", res.status, res.body)
	}
	data, _ := res.body["data"].(map[string]any)
	if data["id"] != "u1" {
		t.Fatalf("unexpected user %v", res.body)
	}
}

func TestSubscriberIsKeptOutOfBusinessArea(t *testing.T) {
	env := newTestEnv(t)
	env.api.me = map[string]any{"id": "u2", "email": "esi@example.com", "subscriber": map[string]any{"id": "s1"}}
	cookies := env.login(t)

	res := env.do(t, httptest.NewRequest("GET", "/api/dashboard/business", nil), cookies...)
	if res.status != 403 || res.body["redirect"] != auth.SubscriberDashboardPath {
		t.Fatalf("expected 403 with subscriber redirect, got %d %v", res.status, res.body)
	}

	res = env.do(t, httptest.NewRequest("GET", "/api/dashboard/subscriber", nil), cookies...)
	if res.status != 200 {
		t.Fatalf("subscriber dashboard status %d body %v", res.status, res.body)
	}
}

func TestWizardValidationError(t *testing.T) {
	env := newTestEnv(t)
	res := env.do(t, jsonRequest("POST", "/api/onboarding/business/verify-otp", map[string]string{"otp": "123456"}))
	if res.status != 400 || errorField(res.body, "code") != "VALIDATION_FAILED" || errorField(res.body, "message") != service.MsgNoOnboarding {
		t.Fatalf("unexpected response %d %v", res.status, res.body)
	}
	if _, ok := res.body["redirect"]; ok {
		t.Fatalf("validation errors must not redirect")
	}
}

func TestDashboardDocumentUpload(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("documentType", "CERTIFICATE")
	part, _ := mw.CreateFormFile("document", "cert.pdf")
	_, _ = part.Write([]byte("%PDF"))
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/api/dashboard/business/verification-documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := env.do(t, req, cookies...)
	if res.status != 201 {
		t.Fatalf("upload status %d body %v", res.status, res.body)
	}

	if len(env.api.uploads) != 1 {
		t.Fatalf("expected one upload, got %d", len(env.api.uploads))
	}
	up := env.api.uploads[0]
	if up["businessId"] != "b1" || up["documentType"] != "CERTIFICATE" || up["document"] != "cert.pdf" {
		t.Fatalf("unexpected upload %+v", up)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)
	if res := env.do(t, httptest.NewRequest("GET", "/health/live", nil)); res.status != 200 || res.body["status"] != "alive" {
		t.Fatalf("live: %d %v", res.status, res.body)
	}
	if res := env.do(t, httptest.NewRequest("GET", "/health/ready", nil)); res.status != 200 {
		t.Fatalf("ready: %d %v", res.status, res.body)
	}
	res := env.do(t, httptest.NewRequest("GET", "/health/metrics", nil))
	data, _ := res.body["data"].(map[string]any)
	if _, ok := data["requests"]; !ok {
		t.Fatalf("metrics should expose request counters, got %v", res.body)
	}
}
