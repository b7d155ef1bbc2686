// Package session owns the authenticated request session: it attaches the
// access credential to outgoing requests and transparently recovers from
// credential expiry by refreshing and replaying, invisible to callers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/docagent/docagent-go/internal/api"
	"github.com/docagent/docagent-go/internal/config"
	"github.com/docagent/docagent-go/internal/credstore"
)

const (
	pathLogin          = "/api/auth/login"
	pathRegister       = "/api/auth/register"
	pathRefresh        = "/api/auth/refresh"
	pathLogout         = "/api/auth/logout"
	pathMe             = "/api/auth/me"
	pathForgotPassword = "/api/auth/forgot-password"
	pathResetPassword  = "/api/auth/reset-password"
)

func oauthCallbackPath(provider string) string {
	return "/api/auth/oauth/" + provider + "/callback"
}

// Manager is the authenticated session. It owns the credential store and the
// derived user profile; request helpers never expose the refresh machinery
// to callers.
type Manager struct {
	cfg        config.Config
	log        *slog.Logger
	store      *credstore.Store
	httpClient *http.Client

	refreshGroup singleflight.Group

	mu   sync.RWMutex
	user *api.User
}

// New creates a session manager backed by the given credential store.
func New(cfg config.Config, store *credstore.Store, logger *slog.Logger) *Manager {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		cfg:        cfg,
		log:        logger,
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Login authenticates with email and password. On success the returned
// credential pair and profile are stored atomically; on failure the store is
// left untouched and the error propagates.
func (m *Manager) Login(ctx context.Context, email, password string) (*api.User, error) {
	return m.authenticate(ctx, pathLogin, api.LoginRequest{Email: email, Password: password})
}

// Register creates an account and signs it in.
func (m *Manager) Register(ctx context.Context, email, password, name string) (*api.User, error) {
	return m.authenticate(ctx, pathRegister, api.RegisterRequest{Email: email, Password: password, Name: name})
}

// LoginWithProvider exchanges an OAuth authorization code at the provider's
// callback endpoint and signs in the resulting account.
func (m *Manager) LoginWithProvider(ctx context.Context, provider, code string) (*api.User, error) {
	return m.authenticate(ctx, oauthCallbackPath(provider), api.OAuthCallbackRequest{Code: code})
}

func (m *Manager) authenticate(ctx context.Context, path string, payload any) (*api.User, error) {
	var out api.TokenResponse
	if err := m.doRequest(ctx, http.MethodPost, path, "", payload, &out); err != nil {
		return nil, err
	}
	pair := api.TokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
	if err := m.store.Set(ctx, pair); err != nil {
		return nil, fmt.Errorf("store credentials: %w", err)
	}
	m.setUser(&out.User)
	return &out.User, nil
}

// Logout notifies the server best-effort, then unconditionally clears the
// credential pair and profile.
func (m *Manager) Logout(ctx context.Context) error {
	if pair, ok := m.store.Pair(); ok && pair.AccessToken != "" {
		if err := m.doRequest(ctx, http.MethodPost, pathLogout, pair.AccessToken, nil, nil); err != nil {
			m.log.Warn("server logout failed; clearing local session anyway", "err", err)
		}
	}
	m.setUser(nil)
	return m.store.Clear(ctx)
}

// ForgotPassword requests a password reset. Stateless pass-through; the
// credential store is not touched.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	return m.doRequest(ctx, http.MethodPost, pathForgotPassword, "", api.ForgotPasswordRequest{Email: email}, nil)
}

// ResetPassword completes a password reset with the emailed token.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) error {
	return m.doRequest(ctx, http.MethodPost, pathResetPassword, "", api.ResetPasswordRequest{Token: token, NewPassword: newPassword}, nil)
}

// Me fetches the current profile through the authenticated request path.
func (m *Manager) Me(ctx context.Context) (*api.User, error) {
	var user api.User
	if err := m.Do(ctx, http.MethodGet, pathMe, nil, &user); err != nil {
		return nil, err
	}
	m.setUser(&user)
	return &user, nil
}

// Restore re-validates a credential pair surviving from a previous run. When
// the access token is already past its expiry it refreshes first instead of
// issuing a probe that is guaranteed to fail. A credential rejection clears
// the session; transient faults propagate without touching the store.
func (m *Manager) Restore(ctx context.Context) (*api.User, error) {
	pair, ok := m.store.Pair()
	if !ok {
		return nil, api.ErrNotAuthenticated
	}

	if exp, known := TokenExpiry(pair.AccessToken); known && time.Now().After(exp) && pair.RefreshToken != "" {
		if _, err := m.refresh(ctx); err != nil {
			m.forceLogout(ctx, err)
			return nil, fmt.Errorf("%w: %v", api.ErrSessionExpired, err)
		}
	}

	user, err := m.Me(ctx)
	if err != nil {
		if api.IsUnauthorized(err) || errors.Is(err, api.ErrSessionExpired) {
			m.forceLogout(ctx, err)
		}
		return nil, err
	}
	return user, nil
}

// User returns the cached profile, if any.
func (m *Manager) User() (*api.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil, false
	}
	u := *m.user
	return &u, true
}

// Authenticated reports whether a credential pair is stored.
func (m *Manager) Authenticated() bool {
	_, ok := m.store.Pair()
	return ok
}

func (m *Manager) setUser(u *api.User) {
	m.mu.Lock()
	m.user = u
	m.mu.Unlock()
}

func (m *Manager) forceLogout(ctx context.Context, cause error) {
	m.setUser(nil)
	if err := m.store.Clear(ctx); err != nil {
		m.log.Error("failed to clear credential store", "err", err)
	}
	m.log.Warn("session cleared", "cause", cause)
}
