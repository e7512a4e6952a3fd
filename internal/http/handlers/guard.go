package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/account-service/internal/account"
	"github.com/hongminglow/account-service/internal/http/respond"
	"github.com/hongminglow/account-service/internal/session"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session"

// SessionResolver turns a session token into the caller's identity.
type SessionResolver interface {
	Lookup(ctx context.Context, token string) (session.Context, error)
	// TTL is the lifetime of newly established sessions.
	TTL() time.Duration
}

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	Secure bool
}

// sessions bundles cookie handling with session lookup for the handlers that need it.
type sessions struct {
	resolver SessionResolver
	cookie   CookieConfig
	logger   *zap.Logger
}

// current resolves the request's session. A missing, unknown or expired cookie yields the anonymous context.
func (s sessions) current(r *http.Request) (session.Context, error) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return session.Context{}, nil
	}
	sc, err := s.resolver.Lookup(r.Context(), c.Value)
	if errors.Is(err, session.ErrNotFound) {
		return session.Context{}, nil
	}
	return sc, err
}

// requireSession is called at the top of guarded handlers. It writes a 401 and returns false
// when the request carries no valid session.
func (s sessions) requireSession(w http.ResponseWriter, r *http.Request) (session.Context, bool) {
	sc, err := s.current(r)
	if err != nil {
		s.logger.Error("session lookup failed", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal server error")
		return session.Context{}, false
	}
	if !sc.Authenticated() {
		respond.Fail(w, http.StatusUnauthorized, account.ErrUnauthenticated.Code, account.ErrUnauthenticated.Message)
		return session.Context{}, false
	}
	return sc, true
}

func (s sessions) setCookie(w http.ResponseWriter, sess session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(s.resolver.TTL() / time.Second),
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s sessions) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
