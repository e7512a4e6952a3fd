package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
)

var errBodyTooLarge = errors.New("request body too large")

// defaultMaxMemory mirrors net/http's in-memory budget for multipart forms.
const defaultMaxMemory = 32 << 20

// readFields extracts the named string fields from a JSON, urlencoded or multipart body.
func readFields(r *http.Request, names ...string) (map[string]string, error) {
	out := make(map[string]string, len(names))
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		raw := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			if isTooLarge(err) {
				return nil, errBodyTooLarge
			}
			return nil, errors.New("invalid JSON payload")
		}
		for _, name := range names {
			if v, ok := raw[name].(string); ok {
				out[name] = v
			}
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(defaultMaxMemory); err != nil {
			if isTooLarge(err) {
				return nil, errBodyTooLarge
			}
			return nil, fmt.Errorf("invalid multipart form: %w", err)
		}
		for _, name := range names {
			out[name] = r.PostFormValue(name)
		}
	default:
		if err := r.ParseForm(); err != nil {
			if isTooLarge(err) {
				return nil, errBodyTooLarge
			}
			return nil, fmt.Errorf("invalid form: %w", err)
		}
		for _, name := range names {
			out[name] = r.PostFormValue(name)
		}
	}
	return out, nil
}

// formFile returns the uploaded file for field, or nil when none was sent. It requires a
// multipart body already parsed by readFields.
func formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	if r.MultipartForm == nil {
		return nil, nil, nil
	}
	f, h, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return f, h, nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}
