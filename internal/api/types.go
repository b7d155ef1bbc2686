// Package api defines the wire types and error taxonomy shared by the
// DocAgent HTTP session layer and its callers.
package api

import "time"

// User is the authenticated user's profile as returned by /api/auth/me and
// embedded in token responses.
type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	Name             string    `json:"name"`
	TenantID         string    `json:"tenant_id"`
	Role             string    `json:"role"`
	SubscriptionTier string    `json:"subscription_tier"`
	CreatedAt        time.Time `json:"created_at"`
}

// TokenPair is the access/refresh credential pair representing an
// authenticated session.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenResponse is returned by login, register, refresh, and the OAuth
// callback endpoints.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	User         User   `json:"user"`
}

// LoginRequest is the payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the payload for POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// OAuthCallbackRequest is the payload for POST /api/auth/oauth/<provider>/callback.
type OAuthCallbackRequest struct {
	Code string `json:"code"`
}

// ForgotPasswordRequest is the payload for POST /api/auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the payload for POST /api/auth/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}
