// Package gateway is the single point of egress to the backend API. It
// attaches the bound bearer credential to each request, normalizes the
// {status, message, data} envelope into errors and turns a 401 into a full
// session reset followed by navigation to the login page.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/onboarding-portal/pkg/util"
)

const (
	// DefaultLoginPath is the public page a 401 sends the user to.
	DefaultLoginPath = "/"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 4 << 20
)

// Options configures a Transport.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	LoginPath  string
	// Debug enables per-request diagnostic logging. Keep it off in production.
	Debug  bool
	Logger *zap.Logger
}

// Transport holds what every bound client shares: base URL, HTTP client and logger.
type Transport struct {
	baseURL    string
	httpClient *http.Client
	loginPath  string
	debug      bool
	logger     *zap.Logger
}

// NewTransport validates opts and returns a Transport.
func NewTransport(opts Options) (*Transport, error) {
	base, err := normalizeBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		baseURL:    base,
		httpClient: httpClient,
		loginPath:  loginPath,
		debug:      opts.Debug,
		logger:     logger,
	}, nil
}

// LoginPath returns the page a 401 navigates to.
func (t *Transport) LoginPath() string {
	return t.loginPath
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("gateway: base URL required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("gateway: invalid base URL: %w", err)
	}
	if u.Scheme == "" {
		return "", errors.New("gateway: base URL missing scheme (http/https)")
	}
	if u.Host == "" {
		return "", errors.New("gateway: base URL missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return strings.TrimSuffix(u.String(), "/"), nil
}

func (t *Transport) buildURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return t.baseURL + path
}

// Credential yields the bearer token to attach, if any.
type Credential func() (string, bool)

// StaticToken always yields token. An empty token yields nothing.
func StaticToken(token string) Credential {
	return func() (string, bool) { return token, token != "" }
}

// Resetter clears every credential and record of the session.
type Resetter interface {
	ClearAll(ctx context.Context) error
}

// Binding ties a client to one session's credential, stores and navigation.
type Binding struct {
	Credential Credential
	Resetter   Resetter
	Navigator  Navigator
	// OnReset runs after the stores are cleared on a 401, before navigation.
	OnReset func(ctx context.Context)
}

// Client issues requests on behalf of one session.
type Client struct {
	transport *Transport
	binding   Binding
	// resetMu makes check-reset-navigate atomic so overlapping 401s navigate
	// once. Clients derived with WithCredential share it.
	resetMu *sync.Mutex
}

// Bind returns a client that authenticates with b.Credential.
func (t *Transport) Bind(b Binding) *Client {
	return &Client{transport: t, binding: b, resetMu: new(sync.Mutex)}
}

// WithCredential returns a client sharing this binding but sending cred instead.
func (c *Client) WithCredential(cred Credential) *Client {
	b := c.binding
	b.Credential = cred
	return &Client{transport: c.transport, binding: b, resetMu: c.resetMu}
}

// Detached returns a client with no session binding. It sends no credential
// and a 401 on it resets nothing.
func (c *Client) Detached() *Client {
	return c.transport.Bind(Binding{})
}

// HandleUnauthorized applies the 401 reset to this client's session. It is for
// a 401 received on a detached client on the session's behalf.
func (c *Client) HandleUnauthorized(ctx context.Context) {
	c.handleUnauthorized(ctx)
}

// Get issues a GET and decodes the envelope data into out when out is non-nil.
func (c *Client) Get(ctx context.Context, path string, out any) (*Envelope, error) {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

// PostJSON sends in as JSON and decodes the envelope data into out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) (*Envelope, error) {
	var body io.Reader
	contentType := ""
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	return c.do(ctx, http.MethodPost, path, body, contentType, out)
}

// PostMultipart sends form as multipart/form-data.
func (c *Client) PostMultipart(ctx context.Context, path string, form Form, out any) (*Envelope, error) {
	body, contentType, err := form.encode()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return c.do(ctx, http.MethodPost, path, body, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) (*Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.transport.buildURL(path), body)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.binding.Credential != nil {
		if token, ok := c.binding.Credential(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	injectTraceparent(ctx, req)

	start := time.Now()
	resp, err := c.transport.httpClient.Do(req)
	if err != nil {
		c.logDiagnostic(req, 0, time.Since(start), err)
		return nil, apperrors.NewTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.logDiagnostic(req, resp.StatusCode, time.Since(start), err)
		return nil, apperrors.NewTransportError(err)
	}
	c.logDiagnostic(req, resp.StatusCode, time.Since(start), nil)

	env := decodeEnvelope(raw)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.handleUnauthorized(ctx)
		return env, apperrors.NewUnauthorized(env.Message)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return env, apperrors.NewUpstreamError(resp.StatusCode, env.Message)
	case !env.Succeeded():
		return env, apperrors.NewEnvelopeError(env.Message)
	}

	if out != nil {
		if err := env.DecodeData(out); err != nil {
			return env, apperrors.NewInternalError(fmt.Errorf("decode %s %s: %w", method, path, err))
		}
	}
	return env, nil
}

func (c *Client) handleUnauthorized(ctx context.Context) {
	c.resetMu.Lock()
	defer c.resetMu.Unlock()

	nav := c.binding.Navigator
	loginPath := c.transport.loginPath
	if nav != nil && nav.Location() == loginPath {
		return
	}

	c.transport.logger.Warn("token invalid or expired (401); forcing sign-out")
	if c.binding.Resetter != nil {
		if err := c.binding.Resetter.ClearAll(ctx); err != nil {
			c.transport.logger.Error("clear session stores", zap.Error(err))
		}
	}
	if c.binding.OnReset != nil {
		c.binding.OnReset(ctx)
	}
	if nav != nil {
		nav.Navigate(loginPath)
	}
}

func (c *Client) logDiagnostic(req *http.Request, status int, latency time.Duration, err error) {
	if !c.transport.debug {
		return
	}
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Duration("latency", latency),
	}
	if err != nil {
		c.transport.logger.Info("api request failed", append(fields, zap.Error(err))...)
		return
	}
	fields = append(fields, zap.Int("status", status))
	c.transport.logger.Info("api request", fields...)
}
