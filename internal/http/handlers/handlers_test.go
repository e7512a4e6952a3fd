package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hongminglow/account-service/internal/account"
	"github.com/hongminglow/account-service/internal/auth"
	"github.com/hongminglow/account-service/internal/avatar"
	"github.com/hongminglow/account-service/internal/mail"
	"github.com/hongminglow/account-service/internal/session"
	"github.com/hongminglow/account-service/internal/storage"
	"github.com/hongminglow/account-service/internal/storage/sqlite"
)

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, msg mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sent)
}

func (o *outbox) last() mail.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sent[len(o.sent)-1]
}

type testEnv struct {
	server *httptest.Server
	client *http.Client
	outbox *outbox
}

// buildMux wires handlers over the given store the same way the server does.
func buildMux(t *testing.T, store storage.AccountStore, sessionStore session.Store, uploadDir string, box mail.Mailer, baseURL string) *http.ServeMux {
	t.Helper()
	logger := zap.NewNop()
	tokens, err := auth.NewTokenManager("handler-secret", auth.PurposePasswordReset, nil)
	require.NoError(t, err)
	avatars, err := avatar.NewLocalStorage(uploadDir)
	require.NoError(t, err)
	sessions := session.NewManager(sessionStore, time.Hour, nil)

	svc := account.New(account.Deps{
		Store:    store,
		Sessions: sessions,
		Tokens:   tokens,
		Hasher:   auth.NewPBKDF2Hasher(1000),
		Mailer:   box,
		Avatars:  avatars,
		Logger:   logger,
	}, account.Options{
		AllowedExtensions: []string{"png", "jpg", "jpeg", "gif"},
		BaseURL:           baseURL,
		MailSender:        "noreply@example.com",
	})

	mux := http.NewServeMux()
	NewHealthHandler(time.Now(), store, logger).Register(mux)
	NewAuthHandler(svc, sessions, CookieConfig{}, logger).Register(mux)
	NewSettingsHandler(svc, sessions, CookieConfig{}, baseURL, 1<<20, logger).Register(mux)
	return mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := sqlite.NewAccountStore(context.Background(), filepath.Join(dir, "accounts.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	box := &outbox{}
	handler := http.NewServeMux()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	handler.Handle("/", buildMux(t, store, session.NewSQLStore(store.DB()), filepath.Join(dir, "uploads"), box, ts.URL))

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{server: ts, client: &http.Client{Jar: jar}, outbox: box}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Reason  string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, req *http.Request) (int, envelope, *http.Response) {
	t.Helper()
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env, resp
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) (int, envelope) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	status, env, _ := e.do(t, req)
	return status, env
}

func (e *testEnv) get(t *testing.T, path string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	status, env, _ := e.do(t, req)
	return status, env
}

func (e *testEnv) registerAndLogin(t *testing.T, email, password string) {
	t.Helper()
	status, _ := e.postJSON(t, "/register", map[string]string{"username": "u", "email": email, "password": password})
	require.Equal(t, http.StatusCreated, status)
	status, _ = e.postJSON(t, "/login", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status)
}

func TestRegisterEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.postJSON(t, "/register", map[string]string{"username": "u", "email": "x@y.com", "password": "Right1pw"})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Registration successful! Please log in.", body.Message)
	assert.NotContains(t, string(body.Data), "password")

	status, body = env.postJSON(t, "/register", map[string]string{"username": "u", "email": "x@y.com", "password": "Right1pw"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Email already exists!", body.Message)
	assert.Equal(t, "email_taken", body.Reason)

	status, body = env.postJSON(t, "/register", map[string]string{"username": "u", "email": "z@y.com", "password": "weak"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, account.ErrWeakPassword.Message, body.Message)
}

func TestRegisterAcceptsURLEncodedForm(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"username": {"u"}, "email": {"form@y.com"}, "password": {"Right1pw"}}
	resp, err := env.client.PostForm(env.server.URL+"/register", form)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRegisterRejectsBadJSON(t *testing.T) {
	env := newTestEnv(t)
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/register", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	status, body, _ := env.do(t, req)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid JSON payload", body.Message)
}

func TestFormRoutesListFields(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.get(t, "/register")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"fields":["username","email","password"]}`, string(body.Data))
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	status, _ := env.postJSON(t, "/register", map[string]string{"username": "u", "email": "x@y.com", "password": "Right1pw"})
	require.Equal(t, http.StatusCreated, status)

	status, body := env.postJSON(t, "/login", map[string]string{"email": "x@y.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Incorrect password. Please try again.", body.Message)

	status, body = env.postJSON(t, "/login", map[string]string{"email": "no@y.com", "password": "Right1pw"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Account not found. Please register first.", body.Message)

	raw, err := json.Marshal(map[string]string{"email": "x@y.com", "password": "Right1pw"})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/login", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	status, body, resp := env.do(t, req)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Login successful!", body.Message)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int(time.Hour/time.Second), cookie.MaxAge)
}

func TestSettingsRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/settings")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, account.ErrUnauthenticated.Message, body.Message)
	assert.Equal(t, "unauthenticated", body.Reason)

	status, _ = env.postJSON(t, "/settings", map[string]string{"username": "x"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.postJSON(t, "/logout", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSettingsFlow(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "x@y.com", "Right1pw")

	status, body := env.get(t, "/settings")
	require.Equal(t, http.StatusOK, status)
	var view struct {
		Email           string `json:"email"`
		Username        string `json:"username"`
		ProfilePhoto    string `json:"profile_photo"`
		ProfilePhotoURL string `json:"profile_photo_url"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &view))
	assert.Equal(t, "x@y.com", view.Email)
	assert.Equal(t, "default_avatar.png", view.ProfilePhoto)
	assert.Equal(t, env.server.URL+"/uploads/default_avatar.png", view.ProfilePhotoURL)

	resp, err := env.client.Get(view.ProfilePhotoURL)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "default photo URL serves an image")

	status, body = env.postJSON(t, "/settings", map[string]string{
		"username":         "renamed",
		"new_password":     "NewPass1",
		"confirm_password": "NewPass2",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Passwords do not match.", body.Message)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("username", "renamed"))
	fw, err := mw.CreateFormFile("photo", "me.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/settings", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	status, body, _ = env.do(t, req)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Settings updated successfully!", body.Message)
	require.NoError(t, json.Unmarshal(body.Data, &view))
	assert.Equal(t, "renamed", view.Username)
	assert.Regexp(t, `^user_\d+_\d+\.png$`, view.ProfilePhoto)

	resp, err = env.client.Get(view.ProfilePhotoURL)
	require.NoError(t, err)
	data, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "\x89PNG fake", string(data))

	status, body = env.postJSON(t, "/logout", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "You have been logged out.", body.Message)

	status, _ = env.get(t, "/settings")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSettingsRejectsOversizedBody(t *testing.T) {
	env := newTestEnv(t)
	env.registerAndLogin(t, "x@y.com", "Right1pw")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("photo", "big.png")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte("a"), 2<<20))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	// Served in-process so the early 413 cannot race the client's body upload.
	req := httptest.NewRequest(http.MethodPost, "/settings", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	base, err := url.Parse(env.server.URL)
	require.NoError(t, err)
	for _, c := range env.client.Jar.Cookies(base) {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.server.Config.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadsNotFound(t *testing.T) {
	env := newTestEnv(t)
	status, _ := env.get(t, "/uploads/missing.png")
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = env.get(t, "/uploads/..%2Faccounts.db")
	assert.Equal(t, http.StatusNotFound, status)
}

var resetLink = regexp.MustCompile(`(/reset-password/\S+)`)

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	status, _ := env.postJSON(t, "/register", map[string]string{"username": "u", "email": "x@y.com", "password": "Right1pw"})
	require.Equal(t, http.StatusCreated, status)

	status, unknown := env.postJSON(t, "/forgot-password", map[string]string{"email": "nobody@y.com"})
	require.Equal(t, http.StatusOK, status)
	assert.Zero(t, env.outbox.count())

	status, known := env.postJSON(t, "/forgot-password", map[string]string{"email": "x@y.com"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, unknown.Message, known.Message, "response does not reveal whether the email exists")
	require.Equal(t, 1, env.outbox.count())

	m := resetLink.FindStringSubmatch(env.outbox.last().Body)
	require.Len(t, m, 2)
	path := m[1]

	status, body := env.get(t, path)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"email":"x@y.com"}`, string(body.Data))

	status, body = env.postJSON(t, path, map[string]string{"password": "weak"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.postJSON(t, path, map[string]string{"password": "NewPass1"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Your password has been updated!", body.Message)

	status, _ = env.postJSON(t, "/login", map[string]string{"email": "x@y.com", "password": "Right1pw"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = env.postJSON(t, "/login", map[string]string{"email": "x@y.com", "password": "NewPass1"})
	assert.Equal(t, http.StatusOK, status)
}

func TestResetPasswordInvalidToken(t *testing.T) {
	env := newTestEnv(t)
	status, body := env.get(t, "/reset-password/not-a-token")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid password reset link.", body.Message)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(time.Now(), pingFunc(func(context.Context) error { return nil }), zap.NewNop()).Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	mux = http.NewServeMux()
	NewHealthHandler(time.Now(), pingFunc(func(context.Context) error { return errors.New("down") }), zap.NewNop()).Register(mux)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"unreachable"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(account.KindValidation))
	assert.Equal(t, http.StatusBadRequest, statusFor(account.KindToken))
	assert.Equal(t, http.StatusNotFound, statusFor(account.KindNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(account.KindConflict))
	assert.Equal(t, http.StatusUnauthorized, statusFor(account.KindAuth))
	assert.Equal(t, http.StatusInternalServerError, statusFor(account.Kind(0)))
}
