package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/edgard/todobot/internal/database/databasetest"
)

func TestEnsureAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := databasetest.NewTestStore(t)

	created, err := EnsureAdmin(ctx, store, DefaultCredentials, bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureAdmin(ctx, store, Credentials{Username: "admin", Password: "changed"}, bcrypt.MinCost)
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := store.GetAdmin(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", stored.Email)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("admin")))
	assert.NotEqual(t, "admin", stored.PasswordHash)
}

func TestEnsureAdminRejectsBlankCredentials(t *testing.T) {
	store := databasetest.NewTestStore(t)

	for _, creds := range []Credentials{
		{Username: "", Password: "secret"},
		{Username: "   ", Password: "secret"},
		{Username: "root", Password: ""},
	} {
		_, err := EnsureAdmin(context.Background(), store, creds, bcrypt.MinCost)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}
