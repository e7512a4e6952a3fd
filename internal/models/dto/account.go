package dto

import "github.com/hongminglow/account-service/internal/models"

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// SettingsRequest carries the text fields of a settings update. The avatar arrives as a multipart file.
type SettingsRequest struct {
	Username        string `json:"username"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type LoginResponse struct {
	User models.User `json:"user"`
}

// AccountResponse is the settings view of the signed-in account.
type AccountResponse struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	ProfilePhoto    string `json:"profile_photo"`
	ProfilePhotoURL string `json:"profile_photo_url"`
}

// ResetTokenResponse confirms a reset token is usable and names the account it belongs to.
type ResetTokenResponse struct {
	Email string `json:"email"`
}

// FormFields describes the inputs a form route accepts.
type FormFields struct {
	Fields []string `json:"fields"`
}

// NewAccountResponse builds the settings view; photoURL is the public URL of the profile photo.
func NewAccountResponse(a models.Account, photoURL string) AccountResponse {
	return AccountResponse{
		ID:              a.User.ID,
		Username:        a.User.Username,
		Email:           a.User.Email,
		ProfilePhoto:    a.Profile.ProfilePhoto,
		ProfilePhotoURL: photoURL,
	}
}
