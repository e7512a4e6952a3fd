package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/account-service/internal/models"
	"github.com/hongminglow/account-service/internal/storage"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
	assert.False(t, isUniqueViolation(nil))
}

// TestAccountStoreIntegration exercises the store against a live Postgres database.
func TestAccountStoreIntegration(t *testing.T) {
	if os.Getenv("RUN_ACCOUNT_INTEGRATION") != "true" {
		t.Skip("set RUN_ACCOUNT_INTEGRATION=true to run this integration test")
	}
	_ = godotenv.Overload("../../../.env")
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	store, err := NewAccountStore(ctx, dbURL, nil)
	require.NoError(t, err)
	defer store.Close()

	email := fmt.Sprintf("pgtest_%d@example.com", time.Now().UnixNano())
	created, err := store.CreateAccount(ctx, models.User{Username: "pg", Email: email, PasswordHash: "x"}, models.DefaultProfilePhoto)
	require.NoError(t, err)

	_, err = store.CreateAccount(ctx, models.User{Username: "pg2", Email: email, PasswordHash: "y"}, models.DefaultProfilePhoto)
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	acct, err := store.FindAccount(ctx, created.User.ID)
	require.NoError(t, err)
	assert.Equal(t, email, acct.User.Email)
	assert.Equal(t, models.DefaultProfilePhoto, acct.Profile.ProfilePhoto)
}
