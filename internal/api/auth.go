package api

import (
	"context"
	"net/http"

	"socialnet/internal/models"
)

// SignUp registers a new account.
func (c *Client) SignUp(ctx context.Context, req models.SignUpRequest) (*models.AuthResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out models.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/signup", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignIn authenticates and keeps the returned session token for later calls.
func (c *Client) SignIn(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, models.NewValidationError("email and password are required")
	}
	var out models.AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/signin", creds, &out); err != nil {
		return nil, err
	}
	c.SetSession(out.Token, out.UserID)
	return &out, nil
}

// SignOut ends the session. Local state is cleared even when the call fails.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodDelete, "/auth/signout", nil, nil)
	c.clearSession()
	return err
}

// CurrentUser returns the signed-in user, or nil without error when the
// session is missing or expired.
func (c *Client) CurrentUser(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.doJSON(ctx, http.MethodGet, "/users/profile/me", nil, &out); err != nil {
		if models.IsUnauthorized(err) {
			return nil, nil
		}
		return nil, err
	}
	c.mu.Lock()
	c.userID = out.ID
	c.mu.Unlock()
	return &out, nil
}
