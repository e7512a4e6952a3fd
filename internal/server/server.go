package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/account-service/internal/account"
	"github.com/hongminglow/account-service/internal/auth"
	"github.com/hongminglow/account-service/internal/avatar"
	"github.com/hongminglow/account-service/internal/config"
	"github.com/hongminglow/account-service/internal/http/handlers"
	"github.com/hongminglow/account-service/internal/mail"
	"github.com/hongminglow/account-service/internal/middleware"
	"github.com/hongminglow/account-service/internal/session"
	"github.com/hongminglow/account-service/internal/storage"
)

// Deps are the backends the server is assembled from. main owns their lifecycle.
type Deps struct {
	Store    storage.AccountStore
	Sessions session.Store
	Avatars  avatar.Storage
	Mailer   mail.Mailer
	Logger   *zap.Logger
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) (*Server, error) {
	tokens, err := auth.NewTokenManager(cfg.SecretKey, auth.PurposePasswordReset, nil)
	if err != nil {
		return nil, fmt.Errorf("init reset tokens: %w", err)
	}
	sessions := session.NewManager(deps.Sessions, cfg.SessionTTL, nil)

	svc := account.New(account.Deps{
		Store:    deps.Store,
		Sessions: sessions,
		Tokens:   tokens,
		Hasher:   hasherFor(cfg.PasswordHash),
		Mailer:   deps.Mailer,
		Avatars:  deps.Avatars,
		Logger:   deps.Logger,
	}, account.Options{
		AllowedExtensions: cfg.AllowedExtensions,
		BaseURL:           cfg.PublicBaseURL,
		MailSender:        cfg.Mail.DefaultSender,
	})

	cookie := handlers.CookieConfig{Secure: cfg.SessionCookieSecure}
	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now(), deps.Store, deps.Logger).Register(mux)
	handlers.NewAuthHandler(svc, sessions, cookie, deps.Logger).Register(mux)
	handlers.NewSettingsHandler(svc, sessions, cookie, cfg.PublicBaseURL, cfg.MaxUploadBytes, deps.Logger).Register(mux)

	handler := middleware.CORS(cfg.CORSOrigins,
		middleware.RequestLogging(deps.Logger,
			middleware.SecurityHeaders(mux)))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          zap.NewStdLog(deps.Logger),
	}

	return &Server{inner: httpServer}, nil
}

func hasherFor(scheme string) auth.Hasher {
	if scheme == config.HashBcrypt {
		return auth.BcryptHasher{}
	}
	return auth.NewPBKDF2Hasher(auth.DefaultPBKDF2Iterations)
}

// Handler exposes the fully wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return s.inner.Handler
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
