package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hongminglow/account-service/internal/avatar"
	"github.com/hongminglow/account-service/internal/config"
	"github.com/hongminglow/account-service/internal/mail"
	"github.com/hongminglow/account-service/internal/session"
)

func TestSQLitePath(t *testing.T) {
	assert.Equal(t, "data/accounts.db", sqlitePath("sqlite://data/accounts.db"))
	assert.Equal(t, "/var/lib/accounts.db", sqlitePath("sqlite:///var/lib/accounts.db"))
	assert.Equal(t, "accounts.db", sqlitePath("file:accounts.db"))
	assert.Equal(t, "accounts.db", sqlitePath("accounts.db"))
}

func TestOpenSQLiteBackends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := openStore(ctx, "sqlite://"+filepath.Join(dir, "accounts.db"), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	sessions, closeSessions, err := openSessions(ctx, config.Config{SessionBackend: config.SessionSQL}, store, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &session.SQLStore{}, sessions)
	require.NoError(t, closeSessions())

	avatars, err := openAvatars(ctx, config.Config{UploadBackend: config.UploadLocal, UploadFolder: filepath.Join(dir, "uploads")})
	require.NoError(t, err)
	assert.IsType(t, &avatar.LocalStorage{}, avatars)
}

func TestNewMailer(t *testing.T) {
	assert.IsType(t, &mail.LogMailer{}, newMailer(config.MailConfig{}, zap.NewNop()))
	assert.IsType(t, &mail.SMTPMailer{}, newMailer(config.MailConfig{Server: "smtp.example.com", Port: 587}, zap.NewNop()))
}
