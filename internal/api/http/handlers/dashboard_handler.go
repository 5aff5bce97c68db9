package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-portal/internal/auth"
	"github.com/spec-kit/onboarding-portal/internal/bootstrap"
	"github.com/spec-kit/onboarding-portal/internal/service"
	apperrors "github.com/spec-kit/onboarding-portal/pkg/util"
)

// DashboardHandler serves the authenticated area.
type DashboardHandler struct {
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(tokens *auth.TokenManager, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{tokens: tokens, logger: logger}
}

// Bootstrap exchanges the session cookie for an access token and loads the
// current user before any dashboard route runs.
func (h *DashboardHandler) Bootstrap(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	b := bootstrap.New(
		auth.NewCookieExchanger(h.tokens, rs.SessionCookie),
		service.UserFetcher{API: rs.API},
		rs.Stores,
		h.logger,
	)
	res := b.Run(c.UserContext())
	if res.Authenticated {
		return c.Next()
	}

	// A 401 from the backend has already reset the session and navigated.
	if apperrors.IsUnauthorized(res.Err) {
		return res.Err
	}
	if res.Err != nil && !errors.Is(res.Err, auth.ErrNoSession) {
		return res.Err
	}
	rs.Nav.Navigate(service.LoginPath)
	return apperrors.NewUnauthorized("Please sign in to continue.")
}

// Home handles GET /api/dashboard by sending the user to their area.
func (h *DashboardHandler) Home(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	user := rs.Stores.User.User()
	if target := auth.DashboardFor(user); target != auth.DashboardPath {
		rs.Nav.Navigate(target)
	}
	return respond(c, http.StatusOK, userResponse(user))
}

// Business handles GET /api/dashboard/business.
func (h *DashboardHandler) Business(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	user := rs.Stores.User.User()
	data := fiber.Map{"user": userResponse(user)}
	if user != nil && user.BusinessAdmin != nil {
		data["business"] = user.BusinessAdmin.Business
	}
	return respond(c, http.StatusOK, data)
}

// Subscriber handles GET /api/dashboard/subscriber.
func (h *DashboardHandler) Subscriber(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	user := rs.Stores.User.User()
	data := fiber.Map{"user": userResponse(user)}
	if user != nil && user.Subscriber != nil {
		data["subscriber"] = user.Subscriber
	}
	return respond(c, http.StatusOK, data)
}
