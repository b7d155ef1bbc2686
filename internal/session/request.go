package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/docagent/docagent-go/internal/api"
)

// Do executes an authenticated request against the API. The current access
// token is attached as a bearer credential. When the server rejects the
// credential and a refresh token exists, the manager refreshes once and
// replays the original request once with the new token; the caller observes
// only the replayed result. If the refresh itself fails the session is
// cleared (forced logout) and the original unauthorized error propagates.
// Failures other than unauthorized are never retried.
func (m *Manager) Do(ctx context.Context, method, path string, body, target any) error {
	pair, _ := m.store.Pair()

	err := m.doRequest(ctx, method, path, pair.AccessToken, body, target)
	if err == nil {
		return nil
	}
	if !api.IsUnauthorized(err) || isAuthPath(path) || pair.RefreshToken == "" {
		return err
	}

	newPair, refreshErr := m.refresh(ctx)
	if refreshErr != nil {
		m.forceLogout(ctx, refreshErr)
		return err
	}
	return m.doRequest(ctx, method, path, newPair.AccessToken, body, target)
}

// refresh exchanges the refresh token for a new credential pair and stores
// it atomically. Concurrent callers share one in-flight refresh: when N
// requests observe an expired credential simultaneously, exactly one refresh
// call reaches the server and all replays use its result.
func (m *Manager) refresh(ctx context.Context) (api.TokenPair, error) {
	v, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		pair, ok := m.store.Pair()
		if !ok || pair.RefreshToken == "" {
			return nil, api.ErrNotAuthenticated
		}
		var out api.TokenResponse
		// The refresh endpoint authenticates with the refresh token as bearer.
		if err := m.doRequest(ctx, http.MethodPost, pathRefresh, pair.RefreshToken, nil, &out); err != nil {
			return nil, err
		}
		newPair := api.TokenPair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}
		// The server rotates and blacklists the old refresh token, so the new
		// pair must land before any replay goes out.
		if err := m.store.Set(ctx, newPair); err != nil {
			return nil, fmt.Errorf("store refreshed credentials: %w", err)
		}
		m.setUser(&out.User)
		m.log.Debug("credential pair refreshed")
		return newPair, nil
	})
	if err != nil {
		return api.TokenPair{}, err
	}
	return v.(api.TokenPair), nil
}

// isAuthPath reports whether a 401 from this path must not trigger a
// refresh: failing credentials on the auth endpoints themselves are terminal.
func isAuthPath(path string) bool {
	switch path {
	case pathLogin, pathRegister, pathRefresh:
		return true
	}
	return strings.HasPrefix(path, "/api/auth/oauth/")
}

// doRequest performs one HTTP exchange. Non-2xx responses decode into a
// structured [*api.Error] carrying the status and the server's detail
// message; transport failures are returned as-is, wrapped with context.
func (m *Manager) doRequest(ctx context.Context, method, path, token string, body, target any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body for %s %s: %w", method, path, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.cfg.BaseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &api.Error{Status: resp.StatusCode, Detail: strings.TrimSpace(string(b))}
		var structured struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(b, &structured) == nil && structured.Detail != "" {
			apiErr.Detail = structured.Detail
		}
		return apiErr
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode response for %s %s: %w", method, path, err)
		}
	}
	return nil
}
