package account

// Kind classifies account errors for callers that map them onto a transport.
type Kind int

const (
	// KindValidation marks rejected input: weak or mismatched passwords, bad uploads, missing fields.
	KindValidation Kind = iota + 1
	// KindNotFound marks an unknown account.
	KindNotFound
	// KindConflict marks a uniqueness clash such as an already registered email.
	KindConflict
	// KindToken marks an expired or invalid reset token.
	KindToken
	// KindAuth marks failed authentication.
	KindAuth
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindToken:
		return "token"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Error is a user-facing account failure. Two errors match under errors.Is when their codes are equal,
// so a variant carrying a different message still matches its sentinel.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrWeakPassword     = newError(KindValidation, "weak_password", "Password must be at least 8 characters and include uppercase, lowercase, and a number.")
	ErrPasswordMismatch = newError(KindValidation, "password_mismatch", "Passwords do not match.")
	ErrInvalidFileType  = newError(KindValidation, "invalid_file_type", "Invalid file type for profile photo.")
	ErrMissingFields    = newError(KindValidation, "missing_fields", "Please fill out all required fields.")
	ErrInvalidEmail     = newError(KindValidation, "invalid_email", "Please enter a valid email address.")

	ErrNotFound = newError(KindNotFound, "not_found", "Account not found. Please register first.")

	ErrEmailTaken = newError(KindConflict, "email_taken", "Email already exists!")

	ErrTokenExpired = newError(KindToken, "token_expired", "The password reset link has expired.")
	ErrTokenInvalid = newError(KindToken, "token_invalid", "Invalid password reset link.")

	ErrBadCredentials  = newError(KindAuth, "bad_credentials", "Incorrect password. Please try again.")
	ErrUnauthenticated = newError(KindAuth, "unauthenticated", "Please log in to access this page.")
)

// Message variants reported by specific flows.
var (
	errWeakNewPassword  = newError(KindValidation, ErrWeakPassword.Code, "New password must be at least 8 characters and include uppercase, lowercase, and a number.")
	errResetEmailAbsent = newError(KindNotFound, ErrNotFound.Code, "Email not found.")
	errResetUserAbsent  = newError(KindNotFound, ErrNotFound.Code, "Invalid user.")
)
