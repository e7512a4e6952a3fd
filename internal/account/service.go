package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	netmail "net/mail"
	"path"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hongminglow/account-service/internal/auth"
	"github.com/hongminglow/account-service/internal/avatar"
	"github.com/hongminglow/account-service/internal/mail"
	"github.com/hongminglow/account-service/internal/models"
	"github.com/hongminglow/account-service/internal/session"
	"github.com/hongminglow/account-service/internal/storage"
)

const (
	resetSubject  = "Password Reset Request"
	resetBodyTmpl = "To reset your password, visit:\n%s\n\nThis link expires in 30 minutes.\n"
)

// Sessions establishes and ends login sessions.
type Sessions interface {
	Establish(ctx context.Context, userID int64) (session.Session, error)
	Destroy(ctx context.Context, token string) error
}

// Deps are the collaborators of a Service.
type Deps struct {
	Store    storage.AccountStore
	Sessions Sessions
	Tokens   *auth.TokenManager
	Hasher   auth.Hasher
	Mailer   mail.Mailer
	Avatars  avatar.Storage
	Logger   *zap.Logger
	Clock    clockwork.Clock
}

// Options tune a Service.
type Options struct {
	// AllowedExtensions lists accepted avatar extensions, lower-case and without the dot.
	AllowedExtensions []string
	// BaseURL is the absolute URL prefix used in reset links.
	BaseURL string
	// MailSender is the From address of reset mails.
	MailSender string
}

// Service implements registration, login, settings and password reset.
type Service struct {
	store    storage.AccountStore
	sessions Sessions
	tokens   *auth.TokenManager
	hasher   auth.Hasher
	mailer   mail.Mailer
	avatars  avatar.Storage
	logger   *zap.Logger
	clock    clockwork.Clock

	allowed    map[string]struct{}
	baseURL    string
	mailSender string
}

// New assembles a Service.
func New(d Deps, o Options) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	allowed := make(map[string]struct{}, len(o.AllowedExtensions))
	for _, ext := range o.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return &Service{
		store:      d.Store,
		sessions:   d.Sessions,
		tokens:     d.Tokens,
		hasher:     d.Hasher,
		mailer:     d.Mailer,
		avatars:    d.Avatars,
		logger:     d.Logger,
		clock:      d.Clock,
		allowed:    allowed,
		baseURL:    strings.TrimRight(o.BaseURL, "/"),
		mailSender: o.MailSender,
	}
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a user and its profile. No session is established.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.Account, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return models.Account{}, ErrMissingFields
	}
	if !validEmail(email) {
		return models.Account{}, ErrInvalidEmail
	}
	if !auth.ValidatePassword(in.Password) {
		return models.Account{}, ErrWeakPassword
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.Account{}, fmt.Errorf("hash password: %w", err)
	}
	acct, err := s.store.CreateAccount(ctx, models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now().UTC().Truncate(time.Second),
	}, models.DefaultProfilePhoto)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.Account{}, ErrEmailTaken
		}
		return models.Account{}, fmt.Errorf("register %s: %w", email, err)
	}
	s.logger.Info("account registered", zap.Int64("user_id", acct.User.ID))
	return acct, nil
}

// Login checks credentials and establishes a session for the user.
func (s *Service) Login(ctx context.Context, email, password string) (session.Session, models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return session.Session{}, models.User{}, ErrMissingFields
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return session.Session{}, models.User{}, ErrNotFound
		}
		return session.Session{}, models.User{}, fmt.Errorf("find %s: %w", email, err)
	}
	ok, err := auth.CheckPassword(user.PasswordHash, password)
	if err != nil {
		return session.Session{}, models.User{}, fmt.Errorf("check password for user %d: %w", user.ID, err)
	}
	if !ok {
		return session.Session{}, models.User{}, ErrBadCredentials
	}
	sess, err := s.sessions.Establish(ctx, user.ID)
	if err != nil {
		return session.Session{}, models.User{}, fmt.Errorf("establish session: %w", err)
	}
	return sess, user, nil
}

// Logout destroys the caller's session. Calling it without a session is a no-op.
func (s *Service) Logout(ctx context.Context, sc session.Context) error {
	if !sc.Authenticated() {
		return nil
	}
	return s.sessions.Destroy(ctx, sc.Token)
}

// Account returns the signed-in user's account.
func (s *Service) Account(ctx context.Context, sc session.Context) (models.Account, error) {
	if !sc.Authenticated() {
		return models.Account{}, ErrUnauthenticated
	}
	acct, err := s.store.FindAccount(ctx, sc.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("load account %d: %w", sc.UserID, err)
	}
	return acct, nil
}

// Upload is a file submitted with a settings update.
type Upload struct {
	Filename string
	Content  io.Reader
}

// SettingsInput is the settings form. Empty fields are left unchanged.
type SettingsInput struct {
	Username        string
	NewPassword     string
	ConfirmPassword string
	Photo           *Upload
}

// UpdateSettings validates every submitted field before changing anything, then commits all changes
// in one transaction. A new avatar is stored first and removed again if the commit fails. The previous
// avatar is deleted after the commit on a best-effort basis.
func (s *Service) UpdateSettings(ctx context.Context, sc session.Context, in SettingsInput) (models.Account, error) {
	acct, err := s.Account(ctx, sc)
	if err != nil {
		return models.Account{}, err
	}

	update := storage.AccountUpdate{UserID: acct.User.ID}
	if name := strings.TrimSpace(in.Username); name != "" && name != acct.User.Username {
		update.Username = &name
	}

	var newHash string
	if in.NewPassword != "" {
		if in.NewPassword != in.ConfirmPassword {
			return models.Account{}, ErrPasswordMismatch
		}
		if !auth.ValidatePassword(in.NewPassword) {
			return models.Account{}, errWeakNewPassword
		}
	}

	var ext string
	hasPhoto := in.Photo != nil && in.Photo.Filename != ""
	if hasPhoto {
		var ok bool
		if ext, ok = s.allowedExtension(in.Photo.Filename); !ok {
			return models.Account{}, ErrInvalidFileType
		}
	}

	if in.NewPassword != "" {
		if newHash, err = s.hasher.Hash(in.NewPassword); err != nil {
			return models.Account{}, fmt.Errorf("hash password: %w", err)
		}
		update.PasswordHash = &newHash
	}

	var newPhoto string
	if hasPhoto {
		newPhoto = fmt.Sprintf("user_%d_%d.%s", acct.User.ID, s.clock.Now().UnixNano(), ext)
		if err := s.avatars.Save(ctx, newPhoto, in.Photo.Content); err != nil {
			return models.Account{}, fmt.Errorf("save avatar: %w", err)
		}
		update.ProfilePhoto = &newPhoto
	}

	if update.Empty() {
		return acct, nil
	}
	if err := s.store.UpdateAccount(ctx, update); err != nil {
		if newPhoto != "" {
			if rmErr := s.avatars.Remove(ctx, newPhoto); rmErr != nil {
				s.logger.Warn("remove avatar after failed update", zap.String("file", newPhoto), zap.Error(rmErr))
			}
		}
		return models.Account{}, fmt.Errorf("update settings for user %d: %w", acct.User.ID, err)
	}

	old := acct.Profile
	if update.Username != nil {
		acct.User.Username = *update.Username
	}
	if update.PasswordHash != nil {
		acct.User.PasswordHash = newHash
	}
	if newPhoto != "" {
		acct.Profile.ProfilePhoto = newPhoto
		if old.HasCustomPhoto() && old.ProfilePhoto != newPhoto {
			if err := s.avatars.Remove(ctx, old.ProfilePhoto); err != nil && !errors.Is(err, avatar.ErrNotFound) {
				s.logger.Warn("remove previous avatar", zap.String("file", old.ProfilePhoto), zap.Error(err))
			}
		}
	}
	return acct, nil
}

// RequestPasswordReset mails a reset link to email when it belongs to an account.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrMissingFields
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return errResetEmailAbsent
		}
		return fmt.Errorf("find %s: %w", email, err)
	}

	token, err := s.tokens.Issue(user.Email)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}
	err = s.mailer.Send(ctx, mail.Message{
		From:    s.mailSender,
		To:      user.Email,
		Subject: resetSubject,
		Body:    fmt.Sprintf(resetBodyTmpl, s.ResetURL(token)),
	})
	if err != nil {
		s.logger.Error("send reset mail", zap.Int64("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// ResetURL is the absolute link a user follows to consume token.
func (s *Service) ResetURL(token string) string {
	return s.baseURL + "/reset-password/" + token
}

// VerifyResetToken checks token and returns the account it was issued for.
func (s *Service) VerifyResetToken(ctx context.Context, token string) (models.User, error) {
	email, err := s.tokens.Verify(token, auth.ResetTokenMaxAge)
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return models.User{}, ErrTokenExpired
	case err != nil:
		return models.User{}, ErrTokenInvalid
	}
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, errResetUserAbsent
		}
		return models.User{}, fmt.Errorf("find %s: %w", email, err)
	}
	return user, nil
}

// ResetPassword replaces the password of the account token was issued for.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.VerifyResetToken(ctx, token)
	if err != nil {
		return err
	}
	if !auth.ValidatePassword(newPassword) {
		return ErrWeakPassword
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("reset password for user %d: %w", user.ID, err)
	}
	s.logger.Info("password reset", zap.Int64("user_id", user.ID))
	return nil
}

// OpenAvatar streams a stored avatar by name. The default photo falls back to the bundled
// placeholder unless the storage holds its own copy.
func (s *Service) OpenAvatar(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := s.avatars.Open(ctx, name)
	if errors.Is(err, avatar.ErrNotFound) && name == models.DefaultProfilePhoto {
		return avatar.OpenDefault(), nil
	}
	return rc, err
}

func (s *Service) allowedExtension(filename string) (string, bool) {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return "", false
	}
	ext := strings.ToLower(base[i+1:])
	_, ok := s.allowed[ext]
	return ext, ok
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := netmail.ParseAddress(email)
	return err == nil && addr.Address == email
}
