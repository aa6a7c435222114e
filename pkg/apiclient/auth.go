package apiclient

import (
	"context"
	"net/http"

	"github.com/tutoria/dashboard/pkg/auth"
)

// Credentials are posted to the login endpoint
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for tokens. The tokens are not installed on
// the client; the session store decides when to do so.
func (c *Client) Login(ctx context.Context, username, password string) (auth.Tokens, error) {
	var tokens auth.Tokens
	err := c.do(ctx, APIAuth, http.MethodPost, "/auth/login", Credentials{Username: username, Password: password}, &tokens)
	return tokens, err
}

// CurrentUser fetches the canonical record of the signed-in user
func (c *Client) CurrentUser(ctx context.Context) (*auth.User, error) {
	var user auth.User
	if err := c.do(ctx, APIAuth, http.MethodGet, "/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdatePreferences saves theme and language and returns the updated user
func (c *Client) UpdatePreferences(ctx context.Context, prefs auth.Preferences) (*auth.User, error) {
	var user auth.User
	if err := c.do(ctx, APIAuth, http.MethodPut, "/auth/me/preferences", prefs, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RequestPasswordReset asks the auth API to mail a reset link
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, APIAuth, http.MethodPost, "/auth/password-reset/request", map[string]string{"email": email}, nil)
}

// ConfirmPasswordReset sets a new password using a reset token
func (c *Client) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	body := map[string]string{"token": token, "new_password": newPassword}
	return c.do(ctx, APIAuth, http.MethodPost, "/auth/password-reset/confirm", body, nil)
}
