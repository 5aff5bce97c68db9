package service

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/onboarding-portal/internal/auth"
	"github.com/spec-kit/onboarding-portal/internal/gateway"
	apperrors "github.com/spec-kit/onboarding-portal/pkg/util"
)

// ClientCredentials identify the portal itself to the backend.
type ClientCredentials struct {
	ClientID     string
	ClientSecret string
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

// ClientTokens obtains service-level client tokens for pre-authentication calls.
type ClientTokens struct {
	creds  ClientCredentials
	group  singleflight.Group
	logger *zap.Logger
}

func NewClientTokens(creds ClientCredentials, logger *zap.Logger) *ClientTokens {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientTokens{creds: creds, logger: logger}
}

// Issue requests a fresh client token without touching any store.
func (t *ClientTokens) Issue(ctx context.Context, api *gateway.Client) (string, error) {
	var out tokenResponse
	payload := map[string]string{
		"clientId":     t.creds.ClientID,
		"clientSecret": t.creds.ClientSecret,
	}
	env, err := api.WithCredential(nil).PostJSON(ctx, "/auth/token", payload, &out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		msg := "Failed to generate client token"
		if env != nil && env.Message != "" {
			msg = env.Message
		}
		return "", apperrors.NewEnvelopeError(msg)
	}
	return out.AccessToken, nil
}

// Ensure returns the session's client token, issuing and storing one when
// absent. Concurrent calls for the same session share one backend request.
func (t *ClientTokens) Ensure(ctx context.Context, rs *auth.RequestSession) (string, error) {
	if tok, ok := rs.Stores.Auth.ClientToken(); ok {
		return tok, nil
	}
	// The fetch is shared with every waiter, so it must not die with the
	// first caller's request nor reset only that caller's session.
	v, err, shared := t.group.Do(rs.ID, func() (interface{}, error) {
		return t.Issue(context.WithoutCancel(ctx), rs.API.Detached())
	})
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			rs.API.HandleUnauthorized(ctx)
		}
		return "", err
	}
	token := v.(string)
	if shared {
		t.logger.Debug("client token shared across concurrent requests", zap.String("session_id", rs.ID))
	}
	if err := rs.Stores.Auth.SetClientToken(ctx, token); err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return token, nil
}

// ClientAPI returns a client that sends the session's client token.
func (t *ClientTokens) ClientAPI(ctx context.Context, rs *auth.RequestSession) (*gateway.Client, error) {
	if _, err := t.Ensure(ctx, rs); err != nil {
		return nil, err
	}
	return rs.API.WithCredential(rs.Stores.Auth.ClientToken), nil
}
