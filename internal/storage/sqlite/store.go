// Package sqlite opens an account store on an embedded SQLite file, for local development and tests.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/hongminglow/account-service/internal/storage/sqlstore"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Dialect is the sqlstore dialect for modernc SQLite.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	GooseDialect:      "sqlite3",
	IsUniqueViolation: isUniqueViolation,
}

// Open connects to the database file at path. SQLite allows one writer, so the pool holds a
// single connection and callers queue on it.
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to sqlite %s: %w", path, err)
	}
	return db, nil
}

// NewAccountStore opens path and applies migrations, logging them to logger.
func NewAccountStore(ctx context.Context, path string, logger *zap.Logger) (*sqlstore.Store, error) {
	db, err := Open(ctx, path)
	if err != nil {
		return nil, err
	}
	s := sqlstore.New(db, Dialect)
	if err := s.Migrate(ctx, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
