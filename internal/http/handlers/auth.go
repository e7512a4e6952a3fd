package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/account-service/internal/account"
	"github.com/hongminglow/account-service/internal/http/respond"
	"github.com/hongminglow/account-service/internal/models/dto"
)

const (
	msgRegistered    = "Registration successful! Please log in."
	msgLoggedIn      = "Login successful!"
	msgLoggedOut     = "You have been logged out."
	msgResetSent     = "If that email is registered, a password reset link has been sent."
	msgResetValid    = "Reset link is valid. Choose a new password."
	msgPasswordReset = "Your password has been updated!"
)

// AuthHandler owns registration, login, logout and password reset endpoints.
type AuthHandler struct {
	svc      *account.Service
	sessions sessions
	logger   *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(svc *account.Service, resolver SessionResolver, cookie CookieConfig, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		svc:      svc,
		sessions: sessions{resolver: resolver, cookie: cookie, logger: logger},
		logger:   logger,
	}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /register", formHandler("register", "username", "email", "password"))
	mux.HandleFunc("POST /register", h.handleRegister)
	mux.HandleFunc("GET /login", formHandler("login", "email", "password"))
	mux.HandleFunc("POST /login", h.handleLogin)
	mux.HandleFunc("POST /logout", h.handleLogout)
	mux.HandleFunc("GET /forgot-password", formHandler("forgot-password", "email"))
	mux.HandleFunc("POST /forgot-password", h.handleForgotPassword)
	mux.HandleFunc("GET /reset-password/{token}", h.handleResetForm)
	mux.HandleFunc("POST /reset-password/{token}", h.handleResetPassword)
}

func formHandler(name string, fields ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, name, dto.FormFields{Fields: fields})
	}
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(r, "username", "email", "password")
	if err != nil {
		writeBindError(w, err)
		return
	}
	req := dto.RegisterRequest{Username: f["username"], Email: f["email"], Password: f["password"]}

	acct, err := h.svc.Register(r.Context(), account.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, h.logger, "register", err)
		return
	}
	respond.JSON(w, http.StatusCreated, msgRegistered, acct.User)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(r, "email", "password")
	if err != nil {
		writeBindError(w, err)
		return
	}
	req := dto.LoginRequest{Email: f["email"], Password: f["password"]}

	sess, user, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, "login", err)
		return
	}
	h.sessions.setCookie(w, sess)
	respond.JSON(w, http.StatusOK, msgLoggedIn, dto.LoginResponse{User: user})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.sessions.requireSession(w, r)
	if !ok {
		return
	}
	if err := h.svc.Logout(r.Context(), sc); err != nil {
		writeError(w, h.logger, "logout", err)
		return
	}
	h.sessions.clearCookie(w)
	respond.JSON(w, http.StatusOK, msgLoggedOut, nil)
}

// handleForgotPassword answers the same way whether or not the address is registered.
func (h *AuthHandler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(r, "email")
	if err != nil {
		writeBindError(w, err)
		return
	}
	req := dto.ForgotPasswordRequest{Email: f["email"]}

	err = h.svc.RequestPasswordReset(r.Context(), req.Email)
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		writeError(w, h.logger, "forgot password", err)
		return
	}
	respond.JSON(w, http.StatusOK, msgResetSent, nil)
}

func (h *AuthHandler) handleResetForm(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.VerifyResetToken(r.Context(), r.PathValue("token"))
	if err != nil {
		writeError(w, h.logger, "verify reset token", err)
		return
	}
	respond.JSON(w, http.StatusOK, msgResetValid, dto.ResetTokenResponse{Email: user.Email})
}

func (h *AuthHandler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	f, err := readFields(r, "password")
	if err != nil {
		writeBindError(w, err)
		return
	}
	req := dto.ResetPasswordRequest{Password: f["password"]}

	if err := h.svc.ResetPassword(r.Context(), r.PathValue("token"), req.Password); err != nil {
		writeError(w, h.logger, "reset password", err)
		return
	}
	respond.JSON(w, http.StatusOK, msgPasswordReset, nil)
}
