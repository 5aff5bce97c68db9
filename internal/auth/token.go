package auth

import (
	"context"
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/onboarding-portal/internal/domain"
)

// ErrNoSession is returned when no usable session cookie is present.
var ErrNoSession = errors.New("no session")

// TokenManager signs and validates the session cookie issued at sign-in.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Claims describes the session JWT payload.
type Claims struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email"`
	AccessToken string `json:"accessToken"`
	jwt.RegisteredClaims
}

// GenerateToken signs a session for the signed-in user.
func (tm *TokenManager) GenerateToken(s domain.SignedInSession) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		Name:        s.Name,
		Email:       s.Email,
		AccessToken: s.AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// CookieExchanger converts a session cookie value into the access token it carries.
type CookieExchanger struct {
	tokens *TokenManager
	cookie string
}

// NewCookieExchanger binds the exchanger to one request's cookie value.
func NewCookieExchanger(tokens *TokenManager, cookie string) *CookieExchanger {
	return &CookieExchanger{tokens: tokens, cookie: cookie}
}

// Exchange returns the access token of a valid session, or ErrNoSession.
func (e *CookieExchanger) Exchange(_ context.Context) (string, error) {
	if e.cookie == "" {
		return "", ErrNoSession
	}
	claims, err := e.tokens.ParseToken(e.cookie)
	if err != nil {
		return "", errors.Join(ErrNoSession, err)
	}
	if claims.AccessToken == "" {
		return "", ErrNoSession
	}
	return claims.AccessToken, nil
}
