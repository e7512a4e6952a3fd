package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hongminglow/account-service/internal/avatar"
	"github.com/hongminglow/account-service/internal/config"
	"github.com/hongminglow/account-service/internal/logging"
	"github.com/hongminglow/account-service/internal/mail"
	"github.com/hongminglow/account-service/internal/server"
	"github.com/hongminglow/account-service/internal/session"
	"github.com/hongminglow/account-service/internal/storage"
	"github.com/hongminglow/account-service/internal/storage/postgres"
	"github.com/hongminglow/account-service/internal/storage/sqlite"
)

const sessionSweepInterval = 10 * time.Minute

// accountDB is what both SQL backends provide.
type accountDB interface {
	storage.AccountStore
	DB() *sqlx.DB
	Close() error
}

func main() {
	loadLocalEnv()

	logger, err := logging.New(logging.ConfigFromEnv())
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger); err != nil {
		logger.Fatal("account service stopped", zap.Error(err))
	}
}

func run(logger *zap.Logger) (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	sessions, closeSessions, err := openSessions(ctx, cfg, store, logger)
	if err != nil {
		return fmt.Errorf("init sessions: %w", err)
	}
	defer func() { err = multierr.Append(err, closeSessions()) }()

	avatars, err := openAvatars(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init avatar storage: %w", err)
	}

	srv, err := server.New(cfg, server.Deps{
		Store:    store,
		Sessions: sessions,
		Avatars:  avatars,
		Mailer:   newMailer(cfg.Mail, logger),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("account service listening", zap.String("addr", cfg.HTTPAddress()))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// openStore picks the backend from the URL scheme. Anything that is not a Postgres URL is
// treated as a SQLite path, with an optional sqlite:// prefix.
func openStore(ctx context.Context, databaseURL string, logger *zap.Logger) (accountDB, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		store, err := postgres.NewAccountStore(ctx, databaseURL, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := sqlite.NewAccountStore(ctx, sqlitePath(databaseURL), logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func sqlitePath(databaseURL string) string {
	path := strings.TrimPrefix(databaseURL, "sqlite://")
	return strings.TrimPrefix(path, "file:")
}

func openSessions(ctx context.Context, cfg config.Config, store accountDB, logger *zap.Logger) (session.Store, func() error, error) {
	if cfg.SessionBackend == config.SessionRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return session.NewRedisStore(client), client.Close, nil
	}

	sqlSessions := session.NewSQLStore(store.DB())
	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweepSessions(sweepCtx, sqlSessions, logger)
	}()
	return sqlSessions, func() error {
		cancel()
		<-done
		return nil
	}, nil
}

// sweepSessions periodically drops expired SQL sessions. Redis expires keys on its own.
func sweepSessions(ctx context.Context, store *session.SQLStore, logger *zap.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.DeleteExpired(ctx, now)
			if err != nil {
				logger.Warn("sweep expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("swept expired sessions", zap.Int64("count", n))
			}
		}
	}
}

func openAvatars(ctx context.Context, cfg config.Config) (avatar.Storage, error) {
	if cfg.UploadBackend == config.UploadS3 {
		return avatar.NewS3Storage(ctx, avatar.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	}
	return avatar.NewLocalStorage(cfg.UploadFolder)
}

func newMailer(cfg config.MailConfig, logger *zap.Logger) mail.Mailer {
	if cfg.Server == "" {
		logger.Warn("MAIL_SERVER not set; reset emails will only be logged")
		return mail.NewLogMailer(logger)
	}
	return mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     cfg.Server,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
	})
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
