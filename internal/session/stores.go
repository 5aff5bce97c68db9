package session

import (
	"context"
	"errors"
)

// Stores groups the three stores of one browser session.
type Stores struct {
	Auth       *AuthStore
	User       *UserStore
	Onboarding *OnboardingStore
}

// NewStores binds all stores to the same storage without hydrating them.
func NewStores(storage Storage) *Stores {
	return &Stores{
		Auth:       NewAuthStore(storage),
		User:       NewUserStore(storage),
		Onboarding: NewOnboardingStore(storage),
	}
}

// Open binds the stores to storage and loads their persisted state.
func Open(ctx context.Context, storage Storage) (*Stores, error) {
	s := NewStores(storage)
	if err := errors.Join(
		s.Auth.cell.hydrate(ctx),
		s.User.cell.hydrate(ctx),
		s.Onboarding.cell.hydrate(ctx),
	); err != nil {
		return nil, err
	}
	return s, nil
}

// ClearAll drops every credential and record of the session. Each store is
// cleared independently so a failing slot does not leave the others set.
func (s *Stores) ClearAll(ctx context.Context) error {
	return errors.Join(
		s.Auth.ClearAuth(ctx),
		s.User.ClearUser(ctx),
		s.Onboarding.ClearOnboarding(ctx),
	)
}
