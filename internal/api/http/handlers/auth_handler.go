package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/onboarding-portal/internal/api/dto"
	"github.com/spec-kit/onboarding-portal/internal/auth"
	"github.com/spec-kit/onboarding-portal/internal/domain"
	"github.com/spec-kit/onboarding-portal/internal/service"
	apperrors "github.com/spec-kit/onboarding-portal/pkg/util"
)

// AuthHandler exposes sign-in, sign-out and password recovery.
type AuthHandler struct {
	auth     *service.AuthService
	sessions *auth.SessionMiddleware
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, sessions *auth.SessionMiddleware) *AuthHandler {
	return &AuthHandler{auth: authService, sessions: sessions}
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	var req dto.LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	signed, cookie, err := h.auth.SignIn(c.UserContext(), rs, req.Email, req.Password)
	if err != nil {
		return err
	}
	h.sessions.SetSessionCookie(c, cookie, signed.ExpiresAt)

	return respond(c, http.StatusOK, dto.SessionResponse{
		User:      userResponse(signed.User),
		ExpiresAt: signed.ExpiresAt,
	})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	if err := h.auth.SignOut(c.UserContext(), rs); err != nil {
		return err
	}
	h.sessions.ExpireSessionCookie(c)
	return respond(c, http.StatusOK, nil)
}

// ForgotPassword handles POST /api/auth/forgot-password.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	var req dto.ForgotPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.auth.ForgotPasswordInitiate(c.UserContext(), rs, req.Email); err != nil {
		return err
	}
	return respond(c, http.StatusAccepted, fiber.Map{"message": "If the account exists, a reset code has been sent."})
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	var req dto.ResetPasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	err = h.auth.ForgotPasswordVerify(c.UserContext(), rs, service.PasswordReset{
		Email:           req.Email,
		OTP:             req.OTP,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, nil)
}

// Session handles GET /api/auth/session: the access token carried by the session cookie.
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	token, err := h.auth.SessionAccessToken(c.UserContext(), rs)
	if err != nil {
		return apperrors.NewUnauthorized("No active session.")
	}
	return respond(c, http.StatusOK, dto.AccessTokenResponse{AccessToken: token})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	rs, err := requestSession(c)
	if err != nil {
		return err
	}
	user := rs.Stores.User.User()
	if user == nil {
		if user, err = h.auth.CurrentUser(c.UserContext(), rs); err != nil {
			return err
		}
		if err := rs.Stores.User.SetUser(c.UserContext(), user); err != nil {
			return apperrors.NewInternalError(err)
		}
	}
	return respond(c, http.StatusOK, userResponse(user))
}

func userResponse(user *domain.CurrentUser) dto.UserResponse {
	if user == nil {
		return dto.UserResponse{}
	}
	resp := dto.UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        string(user.Role()),
		DisplayName: user.DisplayName(),
	}
	if user.BusinessAdmin != nil {
		resp.BusinessID = user.BusinessAdmin.BusinessID
	}
	return resp
}
