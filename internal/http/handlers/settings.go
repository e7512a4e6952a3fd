package handlers

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hongminglow/account-service/internal/account"
	"github.com/hongminglow/account-service/internal/avatar"
	"github.com/hongminglow/account-service/internal/http/respond"
	"github.com/hongminglow/account-service/internal/models"
	"github.com/hongminglow/account-service/internal/models/dto"
)

const msgSettingsUpdated = "Settings updated successfully!"

// SettingsHandler serves the signed-in account's settings and stored avatars.
type SettingsHandler struct {
	svc            *account.Service
	sessions       sessions
	logger         *zap.Logger
	baseURL        string
	maxUploadBytes int64
}

// NewSettingsHandler constructs the handler. Settings bodies larger than maxUploadBytes are rejected.
func NewSettingsHandler(svc *account.Service, resolver SessionResolver, cookie CookieConfig, baseURL string, maxUploadBytes int64, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		svc:            svc,
		sessions:       sessions{resolver: resolver, cookie: cookie, logger: logger},
		logger:         logger,
		baseURL:        baseURL,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register attaches settings routes to the mux.
func (h *SettingsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /settings", h.handleGet)
	mux.HandleFunc("POST /settings", h.handleUpdate)
	mux.HandleFunc("GET /uploads/{filename}", h.handleUpload)
}

func (h *SettingsHandler) view(a models.Account) dto.AccountResponse {
	return dto.NewAccountResponse(a, h.baseURL+"/uploads/"+url.PathEscape(a.Profile.ProfilePhoto))
}

func (h *SettingsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.sessions.requireSession(w, r)
	if !ok {
		return
	}
	acct, err := h.svc.Account(r.Context(), sc)
	if err != nil {
		writeError(w, h.logger, "load settings", err)
		return
	}
	respond.JSON(w, http.StatusOK, "settings", h.view(acct))
}

func (h *SettingsHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.sessions.requireSession(w, r)
	if !ok {
		return
	}
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	f, err := readFields(r, "username", "new_password", "confirm_password")
	if err != nil {
		writeBindError(w, err)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	req := dto.SettingsRequest{
		Username:        f["username"],
		NewPassword:     f["new_password"],
		ConfirmPassword: f["confirm_password"],
	}

	in := account.SettingsInput{
		Username:        req.Username,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	}
	file, header, err := formFile(r, "photo")
	if err != nil {
		writeBindError(w, err)
		return
	}
	if file != nil {
		defer file.Close()
		in.Photo = &account.Upload{Filename: header.Filename, Content: file}
	}

	acct, err := h.svc.UpdateSettings(r.Context(), sc, in)
	if err != nil {
		writeError(w, h.logger, "update settings", err)
		return
	}
	respond.JSON(w, http.StatusOK, msgSettingsUpdated, h.view(acct))
}

func (h *SettingsHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	rc, err := h.svc.OpenAvatar(r.Context(), name)
	if err != nil {
		if errors.Is(err, avatar.ErrNotFound) || errors.Is(err, avatar.ErrInvalidName) {
			respond.Error(w, http.StatusNotFound, "file not found")
			return
		}
		writeError(w, h.logger, "open upload", err)
		return
	}
	defer rc.Close()

	ct := mime.TypeByExtension(filepath.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("stream upload", zap.String("file", name), zap.Error(err))
	}
}
