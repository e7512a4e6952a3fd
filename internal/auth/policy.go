package auth

import "unicode/utf8"

// MinPasswordLength is the shortest password ValidatePassword accepts.
const MinPasswordLength = 8

// ValidatePassword reports whether raw is at least MinPasswordLength characters long and contains an
// ASCII uppercase letter, an ASCII lowercase letter and an ASCII digit.
func ValidatePassword(raw string) bool {
	if utf8.RuneCountInString(raw) < MinPasswordLength {
		return false
	}
	var upper, lower, digit bool
	for i := 0; i < len(raw); i++ {
		switch c := raw[i]; {
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= '0' && c <= '9':
			digit = true
		}
	}
	return upper && lower && digit
}
