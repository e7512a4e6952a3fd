// Package sqlstore implements storage.AccountStore on top of sqlx. SQL is written with '?'
// placeholders and rebound for the connected driver, so one implementation serves every dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/hongminglow/account-service/internal/models"
	"github.com/hongminglow/account-service/internal/storage"
	"github.com/hongminglow/account-service/internal/storage/sqlstore/migrations"
)

// Ensure Store satisfies the storage.AccountStore interface at compile time.
var _ storage.AccountStore = (*Store)(nil)

// Dialect describes the driver-specific parts of a Store.
type Dialect struct {
	// Name is the goose dialect and the migrations directory, e.g. "postgres" or "sqlite".
	Name string
	// GooseDialect overrides Name when goose knows the dialect by another name.
	GooseDialect string
	// IsUniqueViolation reports whether err is the driver's unique-constraint error.
	IsUniqueViolation func(error) bool
}

// Store is a sqlx-backed account store.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	now     func() time.Time
}

// New wraps an open database handle.
func New(db *sqlx.DB, dialect Dialect) *Store {
	if dialect.IsUniqueViolation == nil {
		dialect.IsUniqueViolation = func(error) bool { return false }
	}
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// DB exposes the underlying handle for components sharing the database, such as SQL sessions.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close releases database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// gooseLogger routes goose output into zap.
type gooseLogger struct {
	log *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Infof(strings.TrimSuffix(format, "\n"), v...)
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}

// Migrate applies the embedded migrations for the store's dialect, logging progress to logger.
// A nil logger discards goose output.
func (s *Store) Migrate(ctx context.Context, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetLogger(gooseLogger{log: logger.Named("migrate").Sugar()})
	goose.SetBaseFS(migrations.FS)
	dialect := s.dialect.GooseDialect
	if dialect == "" {
		dialect = s.dialect.Name
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db.DB, s.dialect.Name); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

type accountRow struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    int64  `db:"created_at"`
	ProfilePhoto string `db:"profile_photo"`
}

func (r accountRow) user() models.User {
	return models.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    time.Unix(r.CreatedAt, 0).UTC(),
	}
}

// CreateAccount inserts a user and its profile in one transaction.
func (s *Store) CreateAccount(ctx context.Context, user models.User, profilePhoto string) (models.Account, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC().Truncate(time.Second)
	}
	err := WithTx(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		q := tx.Rebind(`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?) RETURNING id`)
		if err := tx.QueryRowxContext(ctx, q, user.Username, user.Email, user.PasswordHash, user.CreatedAt.Unix()).Scan(&user.ID); err != nil {
			return err
		}
		q = tx.Rebind(`INSERT INTO profiles (user_id, profile_photo) VALUES (?, ?)`)
		_, err := tx.ExecContext(ctx, q, user.ID, profilePhoto)
		return err
	})
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return models.Account{}, storage.ErrAlreadyExists
		}
		return models.Account{}, fmt.Errorf("create account: %w", err)
	}
	return models.Account{
		User:    user,
		Profile: models.Profile{UserID: user.ID, ProfilePhoto: profilePhoto},
	}, nil
}

const selectUser = `SELECT id, username, email, password_hash, created_at FROM users`

// FindByEmail fetches a user by email address.
func (s *Store) FindByEmail(ctx context.Context, email string) (models.User, error) {
	var row accountRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(selectUser+` WHERE email = ?`), email); err != nil {
		return models.User{}, notFound(err)
	}
	return row.user(), nil
}

// FindAccount fetches a user together with its profile.
func (s *Store) FindAccount(ctx context.Context, userID int64) (models.Account, error) {
	const query = `
		SELECT u.id, u.username, u.email, u.password_hash, u.created_at, p.profile_photo
		FROM users u
		JOIN profiles p ON p.user_id = u.id
		WHERE u.id = ?`
	var row accountRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), userID); err != nil {
		return models.Account{}, notFound(err)
	}
	return models.Account{
		User:    row.user(),
		Profile: models.Profile{UserID: row.ID, ProfilePhoto: row.ProfilePhoto},
	}, nil
}

// UpdateAccount applies every set field of update in one transaction.
func (s *Store) UpdateAccount(ctx context.Context, update storage.AccountUpdate) error {
	if update.Empty() {
		return nil
	}
	err := WithTx(ctx, s.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if update.Username != nil {
			if err := execOne(ctx, tx, `UPDATE users SET username = ? WHERE id = ?`, *update.Username, update.UserID); err != nil {
				return err
			}
		}
		if update.PasswordHash != nil {
			if err := execOne(ctx, tx, `UPDATE users SET password_hash = ? WHERE id = ?`, *update.PasswordHash, update.UserID); err != nil {
				return err
			}
		}
		if update.ProfilePhoto != nil {
			if err := execOne(ctx, tx, `UPDATE profiles SET profile_photo = ? WHERE user_id = ?`, *update.ProfilePhoto, update.UserID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("update account %d: %w", update.UserID, err)
	}
	return nil
}

// UpdatePassword replaces the stored password digest.
func (s *Store) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	return s.UpdateAccount(ctx, storage.AccountUpdate{UserID: userID, PasswordHash: &passwordHash})
}

func execOne(ctx context.Context, tx *sqlx.Tx, query string, args ...any) error {
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	return err
}
