package gateway

import (
	"context"
)

type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for a backend access token. The backend speaks
// OAuth2 password flow, so the body is form-encoded.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	var out LoginResult
	resp, err := c.request().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": username,
			"password": password,
		}).
		SetResult(&out).
		Post("/login")
	if err := checkResponse(resp, err); err != nil {
		return LoginResult{}, err
	}
	return out, nil
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var out User
	resp, err := c.request().
		SetContext(ctx).
		SetHeader("Authorization", bearer(token)).
		SetResult(&out).
		Get("/users/me")
	if err := checkResponse(resp, err); err != nil {
		return User{}, err
	}
	return out, nil
}
