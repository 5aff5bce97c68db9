package service

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spec-kit/onboarding-portal/internal/auth"
	"github.com/spec-kit/onboarding-portal/internal/gateway"
	"github.com/spec-kit/onboarding-portal/internal/session"
)

type recordedCall struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	JSON          map[string]any
	Fields        map[string]string
	Files         map[string]string
}

// fakeBackend answers backend routes with canned envelopes and records every call.
type fakeBackend struct {
	t      *testing.T
	srv    *httptest.Server
	mu     sync.Mutex
	calls  []recordedCall
	routes map[string]http.HandlerFunc
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{t: t, routes: map[string]http.HandlerFunc{}}
	fb.srv = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(fb.srv.Close)
	fb.ok("POST /auth/token", map[string]any{"accessToken": "client-tok"})
	return fb
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/app")
	call := recordedCall{
		Method:        r.Method,
		Path:          path,
		Query:         r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
	}
	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/json":
		_ = json.NewDecoder(r.Body).Decode(&call.JSON)
	case strings.HasPrefix(mediaType, "multipart/"):
		call.Fields = map[string]string{}
		call.Files = map[string]string{}
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			body, _ := io.ReadAll(part)
			if part.FileName() != "" {
				call.Files[part.FormName()] = part.FileName() + ":" + string(body)
			} else {
				call.Fields[part.FormName()] = string(body)
			}
		}
	}
	fb.mu.Lock()
	fb.calls = append(fb.calls, call)
	handler, ok := fb.routes[r.Method+" "+path]
	fb.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"status": "error", "message": "no route " + path})
		return
	}
	handler(w, r)
}

func (fb *fakeBackend) on(route string, h http.HandlerFunc) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.routes[route] = h
}

func (fb *fakeBackend) ok(route string, data any) {
	fb.on(route, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "success", "data": data})
	})
}

func (fb *fakeBackend) fail(route string, status int, message string) {
	fb.on(route, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, status, map[string]any{"status": "error", "message": message})
	})
}

func (fb *fakeBackend) callsTo(path string) []recordedCall {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	var out []recordedCall
	for _, c := range fb.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (fb *fakeBackend) session(location string) *auth.RequestSession {
	fb.t.Helper()
	tr, err := gateway.NewTransport(gateway.Options{BaseURL: fb.srv.URL + "/api/v1/app", HTTPClient: fb.srv.Client()})
	if err != nil {
		fb.t.Fatalf("transport: %v", err)
	}
	stores, err := session.Open(context.Background(), session.NewMemoryStorage())
	if err != nil {
		fb.t.Fatalf("open stores: %v", err)
	}
	nav := gateway.NewRecorder(location)
	rs := &auth.RequestSession{ID: "sid-1", Stores: stores, Nav: nav}
	rs.API = tr.Bind(gateway.Binding{Credential: stores.Auth.AccessToken, Resetter: stores, Navigator: nav})
	return rs
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func navTarget(t *testing.T, rs *auth.RequestSession) string {
	t.Helper()
	target, ok := rs.Nav.Target()
	if !ok {
		t.Fatalf("expected a navigation")
	}
	return target
}
