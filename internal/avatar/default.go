package avatar

import (
	"bytes"
	_ "embed"
	"io"
)

//go:embed default_avatar.png
var defaultImage []byte

// OpenDefault returns the bundled placeholder shown for profiles without a custom photo.
func OpenDefault() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(defaultImage))
}
