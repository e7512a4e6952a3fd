package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/hongminglow/account-service/internal/storage"
	"github.com/hongminglow/account-service/internal/storage/sqlstore"
)

// Ensure Store satisfies the storage.AccountStore interface at compile time.
var _ storage.AccountStore = (*Store)(nil)

const uniqueViolation = "23505"

// Dialect is the sqlstore dialect for Postgres through pgx.
var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	IsUniqueViolation: isUniqueViolation,
}

// Store provides Postgres-backed persistence for accounts.
type Store struct {
	*sqlstore.Store
	pool *pgxpool.Pool
}

// NewAccountStore connects to databaseURL and runs migrations, logging them to logger.
func NewAccountStore(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db := sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx")
	s := &Store{Store: sqlstore.New(db, Dialect), pool: pool}
	if err := s.Migrate(ctx, logger); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() error {
	err := s.Store.Close()
	if s.pool != nil {
		s.pool.Close()
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
