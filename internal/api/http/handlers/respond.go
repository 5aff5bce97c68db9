package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/onboarding-portal/internal/auth"
	apperrors "github.com/spec-kit/onboarding-portal/pkg/util"
)

// RedirectHeader tells htmx-style clients to navigate.
const RedirectHeader = "HX-Redirect"

// Redirect copies the session's navigation target, if any, onto the response
// headers and into body.
func Redirect(c *fiber.Ctx, body fiber.Map) fiber.Map {
	rs, ok := auth.SessionFromContext(c)
	if !ok {
		return body
	}
	if target, navigated := rs.Nav.Target(); navigated {
		c.Set(RedirectHeader, target)
		body["redirect"] = target
	}
	return body
}

func respond(c *fiber.Ctx, status int, data any) error {
	body := fiber.Map{}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(Redirect(c, body))
}

func requestSession(c *fiber.Ctx) (*auth.RequestSession, error) {
	rs, ok := auth.SessionFromContext(c)
	if !ok {
		return nil, apperrors.NewInternalError(nil)
	}
	return rs, nil
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}
