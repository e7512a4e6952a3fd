// Package avatar stores uploaded profile photos.
package avatar

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrNotFound is returned when no file exists under the requested name.
var ErrNotFound = errors.New("avatar not found")

// ErrInvalidName is returned for names that could escape the storage root.
var ErrInvalidName = errors.New("invalid avatar name")

// Storage persists avatar files by flat name.
type Storage interface {
	Save(ctx context.Context, name string, r io.Reader) error
	Remove(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// ValidName reports whether name is a single path element safe to use as a storage key.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`+"\x00")
}
