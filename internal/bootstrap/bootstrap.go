// Package bootstrap turns an external session indicator into an access token
// and hydrates the current user on entry to an authenticated area.
package bootstrap

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-portal/internal/domain"
	"github.com/spec-kit/onboarding-portal/internal/session"
)

// SessionExchanger trades the external session for an access token.
type SessionExchanger interface {
	Exchange(ctx context.Context) (string, error)
}

// UserFetcher loads the current user with whatever access token is in the auth store.
type UserFetcher interface {
	CurrentUser(ctx context.Context) (*domain.CurrentUser, error)
}

// Result is the outcome of a bootstrap attempt.
type Result struct {
	Authenticated bool
	User          *domain.CurrentUser
	Err           error
}

// Bootstrapper runs at most one attempt for its lifetime.
type Bootstrapper struct {
	exchanger SessionExchanger
	users     UserFetcher
	stores    *session.Stores
	logger    *zap.Logger

	once   sync.Once
	result Result
}

func New(exchanger SessionExchanger, users UserFetcher, stores *session.Stores, logger *zap.Logger) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrapper{exchanger: exchanger, users: users, stores: stores, logger: logger}
}

// Run performs the bootstrap once. Later calls return the first result.
func (b *Bootstrapper) Run(ctx context.Context) Result {
	b.once.Do(func() {
		b.result = b.run(ctx)
	})
	return b.result
}

func (b *Bootstrapper) run(ctx context.Context) Result {
	token, err := b.exchanger.Exchange(ctx)
	if err != nil {
		b.logger.Debug("session exchange failed", zap.Error(err))
		if clearErr := b.forget(ctx); clearErr != nil {
			b.logger.Warn("failed to clear stale credentials", zap.Error(clearErr))
		}
		return Result{Err: err}
	}
	if err := b.stores.Auth.SetAccessToken(ctx, token); err != nil {
		return Result{Err: err}
	}

	if _, ok := b.stores.Auth.AccessToken(); !ok {
		return Result{Err: b.forget(ctx)}
	}

	user, err := b.users.CurrentUser(ctx)
	if err != nil {
		return Result{Err: err}
	}
	if err := b.stores.User.SetUser(ctx, user); err != nil {
		return Result{Err: err}
	}
	return Result{Authenticated: true, User: user}
}

// forget drops the access token and the user. The user is only meaningful
// while the token that fetched it is.
func (b *Bootstrapper) forget(ctx context.Context) error {
	return errors.Join(
		b.stores.Auth.ClearAccessToken(ctx),
		b.stores.User.ClearUser(ctx),
	)
}
