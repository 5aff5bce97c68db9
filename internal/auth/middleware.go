package auth

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-portal/internal/events"
	"github.com/spec-kit/onboarding-portal/internal/gateway"
	"github.com/spec-kit/onboarding-portal/internal/session"
	apperrors "github.com/spec-kit/onboarding-portal/pkg/util"
)

const sessionKey = "request_session"

// PageHeader carries the path of the page the browser is on when it calls the API.
const PageHeader = "X-Page-Path"

// RequestSession is everything a handler needs to act for one browser session.
type RequestSession struct {
	ID     string
	Stores *session.Stores
	Nav    *gateway.Recorder
	// API sends the access token from the auth store.
	API *gateway.Client
	// SessionCookie is the raw signed session cookie, possibly empty.
	SessionCookie string
}

// CookieConfig names and secures the portal cookies.
type CookieConfig struct {
	SessionName string
	IDName      string
	Secure      bool
	// SignOutOnUnauthorized expires the signed session cookie when a 401 resets the stores.
	SignOutOnUnauthorized bool
}

// SessionMiddleware opens the session stores for every request and binds a gateway client to them.
type SessionMiddleware struct {
	backend    session.Backend
	transport  *gateway.Transport
	cookies    CookieConfig
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(backend session.Backend, transport *gateway.Transport, cookies CookieConfig, dispatcher events.Dispatcher, logger *zap.Logger) *SessionMiddleware {
	if dispatcher == nil {
		dispatcher = events.Nop{}
	}
	return &SessionMiddleware{backend: backend, transport: transport, cookies: cookies, dispatcher: dispatcher, logger: logger}
}

// Handle attaches a RequestSession to the request.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	sid := c.Cookies(m.cookies.IDName)
	if _, err := uuid.Parse(sid); err != nil {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     m.cookies.IDName,
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			Secure:   m.cookies.Secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}

	stores, err := session.Open(c.UserContext(), m.backend.For(sid))
	if err != nil {
		m.logger.Error("open session stores", zap.String("session_id", sid), zap.Error(err))
		return apperrors.NewInternalError(err)
	}

	location := PageLocation(c)
	nav := gateway.NewRecorder(location)
	rs := &RequestSession{
		ID:            sid,
		Stores:        stores,
		Nav:           nav,
		SessionCookie: c.Cookies(m.cookies.SessionName),
	}
	rs.API = m.transport.Bind(gateway.Binding{
		Credential: stores.Auth.AccessToken,
		Resetter:   stores,
		Navigator:  nav,
		OnReset: func(ctx context.Context) {
			if m.cookies.SignOutOnUnauthorized {
				m.ExpireSessionCookie(c)
				rs.SessionCookie = ""
			}
			event := events.NewEvent(events.EventSessionReset, sid, events.SessionResetPayload{
				Location: location,
				Target:   m.transport.LoginPath(),
			})
			if err := m.dispatcher.Publish(ctx, event); err != nil {
				m.logger.Warn("publish session reset", zap.Error(err))
			}
		},
	})

	c.Locals(sessionKey, rs)
	return c.Next()
}

// SetSessionCookie stores the signed session cookie.
func (m *SessionMiddleware) SetSessionCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cookies.SessionName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   m.cookies.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ExpireSessionCookie removes the signed session cookie from the browser.
func (m *SessionMiddleware) ExpireSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cookies.SessionName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   m.cookies.Secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// PageLocation is the page the browser reports being on: the X-Page-Path
// header, else the Referer path, else empty.
func PageLocation(c *fiber.Ctx) string {
	if page := strings.TrimSpace(c.Get(PageHeader)); page != "" {
		return page
	}
	if ref := c.Get(fiber.HeaderReferer); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Path != "" {
			return u.Path
		}
	}
	return ""
}

// SessionFromContext retrieves the request session.
func SessionFromContext(c *fiber.Ctx) (*RequestSession, bool) {
	val := c.Locals(sessionKey)
	if val == nil {
		return nil, false
	}
	rs, ok := val.(*RequestSession)
	return rs, ok
}
