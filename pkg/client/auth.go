package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type authResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Register creates an account and stores its session.
func (c *Client) Register(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/api/auth/register", email, password)
}

// Login starts a session and stores its tokens.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, "/api/auth/login", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (*User, error) {
	var resp authResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   path,
		body:   map[string]string{"email": email, "password": password},
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	if err := c.tokens.Save(&Tokens{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    resp.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	return &User{ID: resp.UserID, Email: resp.Email}, nil
}

// Logout revokes the refresh token on the server and forgets the session.
// The local session is cleared even when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	tokens, err := c.tokens.Load()
	if err != nil {
		return err
	}
	if tokens == nil {
		return nil
	}
	defer func() { _ = c.tokens.Clear() }()

	err = c.do(ctx, call{
		method: http.MethodPost,
		path:   "/api/auth/logout",
		body:   map[string]string{"refresh_token": tokens.RefreshToken},
		authed: true,
	})
	if errors.Is(err, ErrUnauthorized) {
		// The session was already dead on the server.
		return nil
	}
	return err
}

// Me returns the logged-in user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, call{method: http.MethodGet, path: "/api/auth/me", out: &u, authed: true}); err != nil {
		return nil, err
	}
	return &u, nil
}
