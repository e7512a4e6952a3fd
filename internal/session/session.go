package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/segmentio/ksuid"
)

// ErrNotFound is returned when a session token is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Session is a server-side record binding an opaque token to a user.
type Session struct {
	Token     string
	UserID    int64
	ExpiresAt time.Time
}

// Context carries the authenticated identity of the current request. The zero value is anonymous.
type Context struct {
	UserID int64
	Token  string
}

// Authenticated reports whether the context belongs to a signed-in user.
func (c Context) Authenticated() bool {
	return c.UserID != 0 && c.Token != ""
}

// Store persists sessions.
type Store interface {
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}

// Manager establishes, resolves and destroys sessions.
type Manager struct {
	store Store
	ttl   time.Duration
	clock clockwork.Clock
}

// NewManager returns a Manager issuing sessions that live for ttl.
func NewManager(store Store, ttl time.Duration, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{store: store, ttl: ttl, clock: clock}
}

// TTL is the lifetime of newly established sessions.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Establish starts a session for userID.
func (m *Manager) Establish(ctx context.Context, userID int64) (Session, error) {
	s := Session{
		Token:     ksuid.New().String(),
		UserID:    userID,
		ExpiresAt: m.clock.Now().Add(m.ttl).UTC().Truncate(time.Second),
	}
	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}
	return s, nil
}

// Lookup resolves token to a session context. Expired sessions are removed and reported as ErrNotFound.
func (m *Manager) Lookup(ctx context.Context, token string) (Context, error) {
	if token == "" {
		return Context{}, ErrNotFound
	}
	s, err := m.store.Get(ctx, token)
	if err != nil {
		return Context{}, err
	}
	if !m.clock.Now().Before(s.ExpiresAt) {
		if err := m.store.Delete(ctx, token); err != nil {
			return Context{}, fmt.Errorf("delete expired session: %w", err)
		}
		return Context{}, ErrNotFound
	}
	return Context{UserID: s.UserID, Token: s.Token}, nil
}

// Destroy ends the session identified by token. Unknown tokens are not an error.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.store.Delete(ctx, token); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
