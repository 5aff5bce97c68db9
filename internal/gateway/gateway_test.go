package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/spec-kit/onboarding-portal/internal/domain"
	"github.com/spec-kit/onboarding-portal/internal/session"
	apperrors "github.com/spec-kit/onboarding-portal/pkg/util"
)

func newTestTransport(t *testing.T, srv *httptest.Server) *Transport {
	t.Helper()
	tr, err := NewTransport(Options{BaseURL: srv.URL + "/api/v1/app", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	return tr
}

func writeEnvelope(w http.ResponseWriter, status int, env map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func TestNewTransportValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"", "no-scheme", "http://"} {
		if _, err := NewTransport(Options{BaseURL: raw}); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestAuthorizationHeaderFollowsStore(t *testing.T) {
	var (
		mu      sync.Mutex
		headers []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = append(headers, r.Header.Get("Authorization"))
		mu.Unlock()
		if r.URL.Path != "/api/v1/app/auth/me" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]any{"id": "u1"}})
	}))
	defer srv.Close()

	ctx := context.Background()
	stores := session.NewStores(session.NewMemoryStorage())
	client := newTestTransport(t, srv).Bind(Binding{Credential: stores.Auth.AccessToken, Resetter: stores})

	if _, err := client.Get(ctx, "/auth/me", nil); err != nil {
		t.Fatalf("get without token: %v", err)
	}
	_ = stores.Auth.SetAccessToken(ctx, "tok123")
	if _, err := client.Get(ctx, "auth/me", nil); err != nil {
		t.Fatalf("get with token: %v", err)
	}

	if headers[0] != "" {
		t.Fatalf("expected no Authorization header, got %q", headers[0])
	}
	if headers[1] != "Bearer tok123" {
		t.Fatalf("expected bearer header, got %q", headers[1])
	}
}

func TestUnauthorizedResetsSessionAndNavigatesOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, map[string]any{"status": "error", "message": "Token expired"})
	}))
	defer srv.Close()

	ctx := context.Background()
	stores := session.NewStores(session.NewMemoryStorage())
	_ = stores.Auth.SetAccessToken(ctx, "tok123")
	_ = stores.Auth.SetClientToken(ctx, "client")
	_ = stores.User.SetUser(ctx, &domain.CurrentUser{ID: "u1", Subscriber: &domain.Subscriber{ID: "s1"}})
	_ = stores.Onboarding.SetEmail(ctx, "a@b.co")

	nav := NewRecorder("/dashboard/subscriber")
	resets := 0
	client := newTestTransport(t, srv).Bind(Binding{
		Credential: stores.Auth.AccessToken,
		Resetter:   stores,
		Navigator:  nav,
		OnReset:    func(context.Context) { resets++ },
	})

	_, err := client.Get(ctx, "/auth/me", nil)
	if !apperrors.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if err.Error() != "Token expired" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	if _, ok := stores.Auth.AccessToken(); ok {
		t.Fatal("access token survived 401")
	}
	if _, ok := stores.Auth.ClientToken(); ok {
		t.Fatal("client token survived 401")
	}
	if stores.User.User() != nil {
		t.Fatal("current user survived 401")
	}
	if stores.Onboarding.Progress().Email != nil {
		t.Fatal("onboarding progress survived 401")
	}
	if target, ok := nav.Target(); !ok || target != "/" {
		t.Fatalf("expected navigation to /, got %q", target)
	}

	// The user is now on the login page, so a second 401 is a no-op.
	_, _ = client.Get(ctx, "/auth/me", nil)
	if nav.Count() != 1 {
		t.Fatalf("expected exactly one navigation, got %d", nav.Count())
	}
	if resets != 1 {
		t.Fatalf("expected one reset hook call, got %d", resets)
	}
}

func TestConcurrentUnauthorizedNavigatesOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	stores := session.NewStores(session.NewMemoryStorage())
	nav := NewRecorder("/dashboard/business")
	client := newTestTransport(t, srv).Bind(Binding{Credential: StaticToken("tok"), Resetter: stores, Navigator: nav})

	derived := client.WithCredential(StaticToken("client"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		c := client
		if i%2 == 1 {
			c = derived
		}
		go func() {
			defer wg.Done()
			_, _ = c.Get(context.Background(), "/auth/me", nil)
		}()
	}
	wg.Wait()
	if nav.Count() != 1 {
		t.Fatalf("expected exactly one navigation, got %d", nav.Count())
	}
}

func TestDetachedClientIgnoresSessionOnUnauthorized(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ctx := context.Background()
	stores := session.NewStores(session.NewMemoryStorage())
	_ = stores.Auth.SetAccessToken(ctx, "tok")
	nav := NewRecorder("/signup/business")
	client := newTestTransport(t, srv).Bind(Binding{Credential: stores.Auth.AccessToken, Resetter: stores, Navigator: nav})

	_, err := client.Detached().PostJSON(ctx, "/auth/token", map[string]string{}, nil)
	if !apperrors.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("detached client sent a credential: %q", gotAuth)
	}
	if nav.Count() != 0 {
		t.Fatal("detached client navigated")
	}
	if _, ok := stores.Auth.AccessToken(); !ok {
		t.Fatal("detached client reset the session")
	}

	client.HandleUnauthorized(ctx)
	if nav.Count() != 1 {
		t.Fatal("explicit reset should navigate")
	}
	if _, ok := stores.Auth.AccessToken(); ok {
		t.Fatal("explicit reset should clear the session")
	}
}

func TestUnauthorizedOnLoginPageIsNoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, map[string]any{"status": "error", "message": "Invalid credentials"})
	}))
	defer srv.Close()

	ctx := context.Background()
	stores := session.NewStores(session.NewMemoryStorage())
	_ = stores.Auth.SetClientToken(ctx, "client")
	nav := NewRecorder("/")
	client := newTestTransport(t, srv).Bind(Binding{Credential: stores.Auth.ClientToken, Resetter: stores, Navigator: nav})

	_, err := client.PostJSON(ctx, "/auth/login", map[string]string{"email": "a@b.co"}, nil)
	if !apperrors.IsUnauthorized(err) || err.Error() != "Invalid credentials" {
		t.Fatalf("unexpected error %v", err)
	}
	if nav.Count() != 0 {
		t.Fatal("navigation requested on the login page")
	}
	if _, ok := stores.Auth.ClientToken(); !ok {
		t.Fatal("stores reset on the login page")
	}
}

func TestEnvelopeErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]any{"status": "error", "message": "Email already registered"})
	}))
	defer srv.Close()

	client := newTestTransport(t, srv).Bind(Binding{})
	_, err := client.PostJSON(context.Background(), "/business/onboarding/initiate", map[string]string{}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if err.Error() != "Email already registered" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if apperrors.ToDomainError(err).Code != apperrors.CodeEnvelope {
		t.Fatalf("unexpected code %q", apperrors.ToDomainError(err).Code)
	}
}

func TestNonSuccessStatusPassesThrough(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			writeEnvelope(w, http.StatusConflict, map[string]any{"status": "error", "message": "Already exists"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "<html>oops</html>")
	}))
	defer srv.Close()

	ctx := context.Background()
	stores := session.NewStores(session.NewMemoryStorage())
	_ = stores.Auth.SetAccessToken(ctx, "tok")
	nav := NewRecorder("/dashboard")
	client := newTestTransport(t, srv).Bind(Binding{Credential: stores.Auth.AccessToken, Resetter: stores, Navigator: nav})

	_, err := client.PostJSON(ctx, "/settlement-accounts/", map[string]string{}, nil)
	de := apperrors.ToDomainError(err)
	if de.HTTPStatus != http.StatusConflict || de.Message != "Already exists" {
		t.Fatalf("unexpected error %+v", de)
	}

	_, err = client.Get(ctx, "/auth/me", nil)
	if got := apperrors.ToDomainError(err).Message; got != apperrors.GenericMessage {
		t.Fatalf("expected generic message, got %q", got)
	}
	if calls != 2 {
		t.Fatalf("expected no retries, got %d calls", calls)
	}
	if nav.Count() != 0 {
		t.Fatal("non-401 errors must not navigate")
	}
	if _, ok := stores.Auth.AccessToken(); !ok {
		t.Fatal("non-401 errors must not reset the session")
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tr := newTestTransport(t, srv)
	srv.Close()

	_, err := tr.Bind(Binding{}).Get(context.Background(), "/auth/me", nil)
	de := apperrors.ToDomainError(err)
	if de.Code != apperrors.CodeTransport || de.Message != apperrors.GenericMessage {
		t.Fatalf("unexpected error %+v", de)
	}
}

func TestDecodeData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"status":  "success",
			"message": "ok",
			"data":    map[string]any{"accessToken": "abc-" + in["clientId"]},
		})
	}))
	defer srv.Close()

	var out struct {
		AccessToken string `json:"accessToken"`
	}
	env, err := newTestTransport(t, srv).Bind(Binding{}).PostJSON(context.Background(), "/auth/token", map[string]string{"clientId": "id"}, &out)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if out.AccessToken != "abc-id" || env.Message != "ok" {
		t.Fatalf("unexpected decode %+v %+v", out, env)
	}
}

func TestMultipartForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse: %v", err)
		}
		if r.FormValue("businessId") != "b1" {
			t.Errorf("missing businessId")
		}
		if _, ok := r.MultipartForm.Value["landmark"]; ok {
			t.Errorf("empty field should be skipped")
		}
		file, header, err := r.FormFile("document")
		if err != nil {
			t.Errorf("form file: %v", err)
		} else {
			body, _ := io.ReadAll(file)
			if string(body) != "pdf-bytes" || header.Filename != "cert.pdf" {
				t.Errorf("unexpected file %q %q", header.Filename, body)
			}
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"status": "success"})
	}))
	defer srv.Close()

	var form Form
	form.Add("businessId", "b1")
	form.Add("landmark", "")
	form.AddFile("document", "cert.pdf", "application/pdf", strings.NewReader("pdf-bytes"))
	if _, err := newTestTransport(t, srv).Bind(Binding{}).PostMultipart(context.Background(), "/proof-of-address/", form, nil); err != nil {
		t.Fatalf("post multipart: %v", err)
	}
}

func TestTraceparentPropagation(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Traceparent")
		writeEnvelope(w, http.StatusOK, map[string]any{"status": "success"})
	}))
	defer srv.Close()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	if _, err := newTestTransport(t, srv).Bind(Binding{}).Get(ctx, "/auth/me", nil); err != nil {
		t.Fatal(err)
	}
	if got != "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01" {
		t.Fatalf("unexpected traceparent %q", got)
	}
}

func TestWithCredentialKeepsBinding(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, map[string]any{"status": "success"})
	}))
	defer srv.Close()

	base := newTestTransport(t, srv).Bind(Binding{Credential: StaticToken("access")})
	if _, err := base.WithCredential(StaticToken("client")).Get(context.Background(), "/x", nil); err != nil {
		t.Fatal(err)
	}
	if auth != "Bearer client" {
		t.Fatalf("unexpected header %q", auth)
	}
}
