package client

import (
	"context"

	domainauth "github.com/target/promptopt-client/internal/domain/auth"
	"github.com/target/promptopt-client/internal/ports"
)

// Auth endpoint paths relative to the base URL.
const (
	PathLogin    = "/auth/login"
	PathRegister = "/auth/register"
	PathMe       = "/auth/me"
	PathLogout   = "/auth/logout"
)

// AuthAPI binds the authentication endpoints to the pipeline.
type AuthAPI struct {
	c *Client
}

var _ ports.AuthGateway = (*AuthAPI)(nil)

// NewAuthAPI creates an AuthAPI over c.
func NewAuthAPI(c *Client) *AuthAPI {
	return &AuthAPI{c: c}
}

// Login exchanges credentials for a bearer token.
func (a *AuthAPI) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.TokenResponse, error) {
	var tok domainauth.TokenResponse
	if err := a.c.Post(ctx, PathLogin, creds, &tok); err != nil {
		return domainauth.TokenResponse{}, err
	}
	return tok, nil
}

// Register creates an account and returns it.
func (a *AuthAPI) Register(ctx context.Context, reg domainauth.Registration) (domainauth.User, error) {
	var user domainauth.User
	if err := a.c.Post(ctx, PathRegister, reg, &user); err != nil {
		return domainauth.User{}, err
	}
	return user, nil
}

// Me returns the user owning the current bearer token.
func (a *AuthAPI) Me(ctx context.Context) (domainauth.User, error) {
	var user domainauth.User
	if err := a.c.Get(ctx, PathMe, &user); err != nil {
		return domainauth.User{}, err
	}
	return user, nil
}

// Logout tells the backend token is no longer in use. Failures are returned but raise no
// notification, and a 401 does not tear down whatever session is current by then.
func (a *AuthAPI) Logout(ctx context.Context, token string) error {
	return a.c.Post(WithoutNotifications(ctx), PathLogout, nil, nil, BearerToken(token))
}
