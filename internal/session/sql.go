package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLStore keeps sessions in the sessions table next to the account data.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore returns a store on db. The sessions table is created by the account store migrations.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

type sessionRow struct {
	Token     string `db:"token"`
	UserID    int64  `db:"user_id"`
	ExpiresAt int64  `db:"expires_at"`
}

// Save implements Store.
func (s *SQLStore) Save(ctx context.Context, sess Session, _ time.Duration) error {
	q := s.db.Rebind(`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q, sess.Token, sess.UserID, sess.ExpiresAt.Unix())
	return err
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, token string) (Session, error) {
	var row sessionRow
	q := s.db.Rebind(`SELECT token, user_id, expires_at FROM sessions WHERE token = ?`)
	if err := s.db.GetContext(ctx, &row, q, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return Session{Token: row.Token, UserID: row.UserID, ExpiresAt: time.Unix(row.ExpiresAt, 0).UTC()}, nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE token = ?`), token)
	return err
}

// DeleteExpired removes every session that expired at or before now and returns how many were removed.
func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM sessions WHERE expires_at <= ?`), now.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
