package session

import (
	"context"

	"github.com/spec-kit/onboarding-portal/internal/domain"
)

type userState struct {
	User *domain.CurrentUser `json:"user"`
}

// UserStore owns the CurrentUser profile.
type UserStore struct {
	cell *cell[userState]
}

// NewUserStore binds a user store to storage without hydrating it.
func NewUserStore(storage Storage) *UserStore {
	return &UserStore{cell: newCell(storage, SlotUser, func() userState { return userState{} })}
}

// User returns a copy of the current user, or nil.
func (s *UserStore) User() *domain.CurrentUser {
	u := s.cell.get().User
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

func (s *UserStore) IsAuthenticated() bool {
	return s.cell.get().User != nil
}

func (s *UserStore) SetUser(ctx context.Context, user *domain.CurrentUser) error {
	if user == nil {
		return s.ClearUser(ctx)
	}
	cp := *user
	return s.cell.update(ctx, func(st *userState) { st.User = &cp })
}

// UpdateUser merges update into the current user. It does nothing when no user is set.
func (s *UserStore) UpdateUser(ctx context.Context, update domain.UserUpdate) error {
	if !s.IsAuthenticated() {
		return nil
	}
	return s.cell.update(ctx, func(st *userState) {
		if st.User == nil {
			return
		}
		cp := *st.User
		update.Apply(&cp)
		st.User = &cp
	})
}

func (s *UserStore) ClearUser(ctx context.Context) error {
	return s.cell.clear(ctx)
}
