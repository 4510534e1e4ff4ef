package api

import (
	"context"
	"net/http"

	"github.com/wolfeidau/docsign/internal/apierr"
	"github.com/wolfeidau/docsign/internal/models"
	"github.com/wolfeidau/docsign/internal/validation"
)

const usersPath = "users"

// Users manages user accounts. Only admins may call the mutating methods.
type Users struct {
	client *Client
}

// NewUsers creates a Users service.
func NewUsers(client *Client) *Users {
	return &Users{client: client}
}

func (u *Users) List(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := u.client.doJSON(ctx, http.MethodGet, usersPath, nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (u *Users) Get(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := u.client.doJSON(ctx, http.MethodGet, idPath(usersPath, id), nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create adds a user. A password is required and the role defaults to user.
func (u *Users) Create(ctx context.Context, in models.UserInput) (*models.User, error) {
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, apierr.New(apierr.ErrValidation, "password is required")
	}

	var user models.User
	if err := u.client.doJSON(ctx, http.MethodPost, usersPath, nil, in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Update patches a user. An empty password leaves it unchanged.
func (u *Users) Update(ctx context.Context, id int64, in models.UserInput) (*models.User, error) {
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	var user models.User
	if err := u.client.doJSON(ctx, http.MethodPatch, idPath(usersPath, id), nil, in, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *Users) Delete(ctx context.Context, id int64) error {
	return u.client.doJSON(ctx, http.MethodDelete, idPath(usersPath, id), nil, nil, nil)
}
