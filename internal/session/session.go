// Package session keeps the signed-in user's token and identity in local state
// and gates screens by role and token expiry.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"artemisa_pos/internal/localstore"
	"artemisa_pos/internal/remote"
)

// Local state keys.
const (
	TokenKey    = "token"
	IdentityKey = "s"
)

// Where a rejected request should send the user.
const (
	LoginPath        = "/login"
	ExpiredLoginPath = "/login?type=exp"
)

var (
	// ErrNoToken: nobody is signed in.
	ErrNoToken = errors.New("no session token")
	// ErrMalformedToken: the token payload cannot be decoded.
	ErrMalformedToken = errors.New("malformed session token")
	// ErrForbidden: the token's role may not open this screen.
	ErrForbidden = errors.New("role not allowed")
	// ErrExpired: the token's exp is in the past.
	ErrExpired = errors.New("session expired")
	// ErrMissingCredentials is returned by Login for a blank email or password.
	ErrMissingCredentials = errors.New("email and password are required")
)

// Identity is the signed-in user as stored under IdentityKey.
type Identity struct {
	ID   string `json:"_id"`
	Role string `json:"role"`
}

// Claims are the token fields the gate reads.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator exchanges credentials for a token.
type Authenticator interface {
	Login(ctx context.Context, cred remote.Credentials) (remote.LoginResult, error)
}

// Manager owns the session keys in local state.
type Manager struct {
	kv       localstore.Store
	logger   *zap.Logger
	now      func() time.Time
	onLogout []func()
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// OnLogout registers fn to run after the session keys are cleared.
func OnLogout(fn func()) Option {
	return func(m *Manager) { m.onLogout = append(m.onLogout, fn) }
}

func NewManager(kv localstore.Store, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{kv: kv, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login signs in through auth and stores the token and identity.
func (m *Manager) Login(ctx context.Context, auth Authenticator, email, password string) (Identity, error) {
	if email == "" || password == "" {
		return Identity{}, ErrMissingCredentials
	}
	res, err := auth.Login(ctx, remote.Credentials{Email: email, Password: password})
	if err != nil {
		m.logger.Info("login failed", zap.String("email", email), zap.Error(err))
		return Identity{}, err
	}

	id := Identity{ID: res.ID, Role: res.Role}
	raw, err := json.Marshal(id)
	if err != nil {
		return Identity{}, fmt.Errorf("encode identity: %w", err)
	}
	if err := m.kv.Set(TokenKey, []byte(res.AccessToken)); err != nil {
		return Identity{}, fmt.Errorf("store token: %w", err)
	}
	if err := m.kv.Set(IdentityKey, raw); err != nil {
		return Identity{}, fmt.Errorf("store identity: %w", err)
	}
	m.logger.Info("signed in", zap.String("user_id", id.ID), zap.String("role", id.Role))
	return id, nil
}

// Token is the raw access token, "" when signed out. It satisfies remote.TokenSource.
func (m *Manager) Token() string {
	b, err := m.kv.Get(TokenKey)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			m.logger.Warn("failed to read token", zap.Error(err))
		}
		return ""
	}
	return string(b)
}

// Identity returns the stored identity. A missing or unreadable entry yields
// the zero Identity.
func (m *Manager) Identity() Identity {
	b, err := m.kv.Get(IdentityKey)
	if err != nil {
		return Identity{}
	}
	var id Identity
	if err := json.Unmarshal(b, &id); err != nil {
		m.logger.Warn("discarding unreadable identity", zap.Error(err))
		return Identity{}
	}
	return id
}

// Logout clears the session keys and runs the logout hooks.
func (m *Manager) Logout() error {
	var errs []error
	for _, k := range []string{TokenKey, IdentityKey} {
		if err := m.kv.Delete(k); err != nil && !errors.Is(err, localstore.ErrNotFound) {
			errs = append(errs, fmt.Errorf("delete %s: %w", k, err))
		}
	}
	for _, fn := range m.onLogout {
		fn()
	}
	m.logger.Info("signed out")
	return errors.Join(errs...)
}

// Authorize decodes the stored token without verifying it and checks the
// expiry first, then the role. This is a navigation gate; the backend enforces
// the real authorization.
func (m *Manager) Authorize(roles []string) (*Claims, error) {
	tok := m.Token()
	if tok == "" {
		return nil, ErrNoToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	// an expired session sends the user to log in again whatever its role
	if claims.ExpiresAt != nil && !m.now().Before(claims.ExpiresAt.Time) {
		return claims, ErrExpired
	}
	if !slices.Contains(roles, claims.Role) {
		return claims, ErrForbidden
	}
	return claims, nil
}

// RedirectFor names the path a rejected request should lead to. "" means go
// back to the previous screen.
func RedirectFor(err error) string {
	switch {
	case errors.Is(err, ErrNoToken):
		return LoginPath
	case errors.Is(err, ErrExpired):
		return ExpiredLoginPath
	}
	return ""
}
