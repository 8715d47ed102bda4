// Package admin provisions the administrative account.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/edgard/todobot/internal/database"
)

// Store is the part of database.Store provisioning needs.
type Store interface {
	CreateAdmin(ctx context.Context, admin *database.Admin) error
	GetAdmin(ctx context.Context, username string) (*database.Admin, error)
}

// Credentials describe the account to create.
type Credentials struct {
	Username string
	Email    string
	Password string
}

// DefaultCredentials are used by the manage CLI when no flags are given.
var DefaultCredentials = Credentials{
	Username: "admin",
	Email:    "admin@example.com",
	Password: "admin",
}

// ErrInvalidCredentials is returned for a blank username or password.
var ErrInvalidCredentials = errors.New("username and password are required")

// EnsureAdmin creates the account unless one with the same username exists.
// It reports whether an account was created. cost is the bcrypt cost; zero
// means bcrypt.DefaultCost.
func EnsureAdmin(ctx context.Context, store Store, creds Credentials, cost int) (bool, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return false, ErrInvalidCredentials
	}

	_, err := store.GetAdmin(ctx, username)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, database.ErrNotFound):
		return false, fmt.Errorf("failed to look up admin %q: %w", username, err)
	}

	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), cost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	err = store.CreateAdmin(ctx, &database.Admin{
		Username:     username,
		Email:        strings.TrimSpace(creds.Email),
		PasswordHash: string(hash),
	})
	switch {
	case errors.Is(err, database.ErrConflict):
		// Created concurrently.
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}
