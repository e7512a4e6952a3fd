package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/account-service/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// AccountUpdate lists the fields to change for one user. Nil fields are left untouched.
type AccountUpdate struct {
	UserID       int64
	Username     *string
	PasswordHash *string
	ProfilePhoto *string
}

// Empty reports whether the update changes nothing.
func (u AccountUpdate) Empty() bool {
	return u.Username == nil && u.PasswordHash == nil && u.ProfilePhoto == nil
}

// AccountStore captures persistence operations for users and their profiles.
type AccountStore interface {
	// CreateAccount inserts the user and its profile atomically. A duplicate email yields ErrAlreadyExists.
	CreateAccount(ctx context.Context, user models.User, profilePhoto string) (models.Account, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindAccount(ctx context.Context, userID int64) (models.Account, error)
	// UpdateAccount applies every non-nil field in one transaction.
	UpdateAccount(ctx context.Context, update AccountUpdate) error
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	Ping(ctx context.Context) error
}
