package session

import "context"

type authState struct {
	AccessToken *string `json:"accessToken"`
	ClientToken *string `json:"clientToken"`
}

// AuthStore owns the AccessToken and ClientToken credentials.
type AuthStore struct {
	cell *cell[authState]
}

// NewAuthStore binds an auth store to storage without hydrating it.
func NewAuthStore(storage Storage) *AuthStore {
	return &AuthStore{cell: newCell(storage, SlotAuth, func() authState { return authState{} })}
}

// AccessToken returns the current access token, if present.
func (s *AuthStore) AccessToken() (string, bool) {
	return deref(s.cell.get().AccessToken)
}

// ClientToken returns the current client token, if present.
func (s *AuthStore) ClientToken() (string, bool) {
	return deref(s.cell.get().ClientToken)
}

// SetAccessToken stores token. An empty token clears the access token.
func (s *AuthStore) SetAccessToken(ctx context.Context, token string) error {
	return s.cell.update(ctx, func(st *authState) { st.AccessToken = ref(token) })
}

// SetClientToken stores token. An empty token clears the client token.
func (s *AuthStore) SetClientToken(ctx context.Context, token string) error {
	return s.cell.update(ctx, func(st *authState) { st.ClientToken = ref(token) })
}

// UpdateAccessToken replaces the access token only when token is non-empty.
func (s *AuthStore) UpdateAccessToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.SetAccessToken(ctx, token)
}

func (s *AuthStore) ClearAccessToken(ctx context.Context) error {
	return s.cell.update(ctx, func(st *authState) { st.AccessToken = nil })
}

func (s *AuthStore) ClearClientToken(ctx context.Context) error {
	return s.cell.update(ctx, func(st *authState) { st.ClientToken = nil })
}

// ClearAuth removes both credentials and the persisted slot.
func (s *AuthStore) ClearAuth(ctx context.Context) error {
	return s.cell.clear(ctx)
}

func ref(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) (string, bool) {
	if v == nil || *v == "" {
		return "", false
	}
	return *v, true
}
