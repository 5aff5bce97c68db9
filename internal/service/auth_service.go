package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-portal/internal/auth"
	"github.com/spec-kit/onboarding-portal/internal/domain"
	"github.com/spec-kit/onboarding-portal/internal/events"
	"github.com/spec-kit/onboarding-portal/internal/gateway"
	apperrors "github.com/spec-kit/onboarding-portal/pkg/util"
)

// LoginPath is the public login page.
const LoginPath = "/"

// AuthService coordinates sign-in, sign-out and password recovery against the backend.
type AuthService struct {
	clientTokens *ClientTokens
	tokenMgr     *auth.TokenManager
	dispatcher   events.Dispatcher
	logger       *zap.Logger
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	ClientTokens *ClientTokens
	TokenManager *auth.TokenManager
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	if deps.Dispatcher == nil {
		deps.Dispatcher = events.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AuthService{
		clientTokens: deps.ClientTokens,
		tokenMgr:     deps.TokenManager,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
	}
}

// TokenManager exposes the session cookie signer.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// SignIn exchanges credentials for an access token, loads the user and signs
// a session cookie. The stores are populated so the dashboard can skip a refetch.
func (s *AuthService) SignIn(ctx context.Context, rs *auth.RequestSession, email, password string) (*domain.SignedInSession, string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, "", validationError(MsgMissingCredentials)
	}

	clientToken, err := s.clientTokens.Issue(ctx, rs.API)
	if err != nil {
		return nil, "", err
	}

	var login loginResponse
	payload := map[string]string{"email": email, "password": password}
	if _, err := rs.API.WithCredential(gateway.StaticToken(clientToken)).PostJSON(ctx, "/auth/login", payload, &login); err != nil {
		return nil, "", err
	}
	if login.AccessToken == "" {
		return nil, "", apperrors.NewEnvelopeError("Login failed")
	}

	user, err := fetchCurrentUser(ctx, rs.API.WithCredential(gateway.StaticToken(login.AccessToken)))
	if err != nil {
		return nil, "", err
	}

	signed := &domain.SignedInSession{
		UserID:      user.ID,
		Name:        user.DisplayName(),
		Email:       user.Email,
		AccessToken: login.AccessToken,
		User:        user,
	}
	cookie, exp, err := s.tokenMgr.GenerateToken(*signed)
	if err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	signed.ExpiresAt = exp

	if err := rs.Stores.Auth.SetAccessToken(ctx, login.AccessToken); err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	if err := rs.Stores.Auth.ClearClientToken(ctx); err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	if err := rs.Stores.User.SetUser(ctx, user); err != nil {
		return nil, "", apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.NewEvent(events.EventSignedIn, rs.ID, events.SignedInPayload{UserID: user.ID, Email: user.Email}))
	rs.Nav.Navigate(auth.DashboardPath)
	return signed, cookie, nil
}

// SignOut drops every store of the session and navigates to the login page.
func (s *AuthService) SignOut(ctx context.Context, rs *auth.RequestSession) error {
	if err := rs.Stores.ClearAll(ctx); err != nil {
		return apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.NewEvent(events.EventSignedOut, rs.ID, nil))
	rs.Nav.Navigate(LoginPath)
	return nil
}

// ForgotPasswordInitiate asks the backend to email a reset code.
func (s *AuthService) ForgotPasswordInitiate(ctx context.Context, rs *auth.RequestSession, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return validationError(MsgMissingEmail)
	}
	api, err := s.clientTokens.ClientAPI(ctx, rs)
	if err != nil {
		return err
	}
	_, err = api.PostJSON(ctx, "/auth/forgot-password/initiate", map[string]string{"email": email}, nil)
	return err
}

// PasswordReset is the second step of password recovery.
type PasswordReset struct {
	Email           string
	OTP             string
	NewPassword     string
	ConfirmPassword string
}

// ForgotPasswordVerify sets a new password with the emailed code.
func (s *AuthService) ForgotPasswordVerify(ctx context.Context, rs *auth.RequestSession, in PasswordReset) error {
	if !validOTP(in.OTP) {
		return validationError(MsgInvalidResetCode)
	}
	if err := checkNewPassword(in.NewPassword, in.ConfirmPassword, MsgPasswordTooShort); err != nil {
		return err
	}
	if blank(in.Email) {
		return validationError(MsgMissingEmail)
	}
	api, err := s.clientTokens.ClientAPI(ctx, rs)
	if err != nil {
		return err
	}
	payload := map[string]string{"email": strings.TrimSpace(in.Email), "otp": in.OTP, "newPassword": in.NewPassword}
	if _, err := api.PostJSON(ctx, "/auth/forgot-password/verify", payload, nil); err != nil {
		return err
	}
	if err := rs.Stores.Auth.ClearClientToken(ctx); err != nil {
		s.logger.Warn("clear client token", zap.Error(err))
	}
	rs.Nav.Navigate(LoginPath)
	return nil
}

// CurrentUser loads the profile behind the session's access token.
func (s *AuthService) CurrentUser(ctx context.Context, rs *auth.RequestSession) (*domain.CurrentUser, error) {
	return fetchCurrentUser(ctx, rs.API)
}

// SessionAccessToken returns the access token carried by the session cookie.
func (s *AuthService) SessionAccessToken(ctx context.Context, rs *auth.RequestSession) (string, error) {
	return auth.NewCookieExchanger(s.tokenMgr, rs.SessionCookie).Exchange(ctx)
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func fetchCurrentUser(ctx context.Context, api *gateway.Client) (*domain.CurrentUser, error) {
	var user domain.CurrentUser
	if _, err := api.Get(ctx, "/auth/me", &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, apperrors.NewEnvelopeError("Failed to fetch user details")
	}
	return &user, nil
}

// UserFetcher adapts a bound client to the bootstrap user-fetch contract.
type UserFetcher struct {
	API *gateway.Client
}

func (f UserFetcher) CurrentUser(ctx context.Context) (*domain.CurrentUser, error) {
	return fetchCurrentUser(ctx, f.API)
}
