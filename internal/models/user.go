package models

import "time"

// DefaultProfilePhoto is the sentinel stored in Profile.ProfilePhoto until the user uploads an avatar.
const DefaultProfilePhoto = "default_avatar.png"

// User captures application-facing fields for an account identity.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the 1:1 extension of User created alongside it at registration.
type Profile struct {
	UserID       int64  `json:"user_id"`
	ProfilePhoto string `json:"profile_photo"`
}

// HasCustomPhoto reports whether the profile points at an uploaded avatar rather than the default.
func (p Profile) HasCustomPhoto() bool {
	return p.ProfilePhoto != "" && p.ProfilePhoto != DefaultProfilePhoto
}

// Account joins a User with its Profile.
type Account struct {
	User    User    `json:"user"`
	Profile Profile `json:"profile"`
}
