package api

import (
	"context"
	"net/http"

	"github.com/wolfeidau/docsign/internal/models"
)

// AuthClient performs the credential exchanges. It must be built on an
// http.Client without the auth transport so a failed refresh is not
// itself refreshed.
type AuthClient struct {
	client *Client
}

// NewAuthClient creates an AuthClient.
func NewAuthClient(client *Client) *AuthClient {
	return &AuthClient{client: client}
}

// Login posts credentials to /auth/login.
func (a *AuthClient) Login(ctx context.Context, creds models.Credentials) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := a.client.doJSON(ctx, http.MethodPost, "auth/login", nil, creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new access token.
func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (*models.RefreshResponse, error) {
	var resp models.RefreshResponse
	req := models.RefreshRequest{RefreshToken: refreshToken}
	if err := a.client.doJSON(ctx, http.MethodPost, "auth/refresh", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
