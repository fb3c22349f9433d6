package media

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType indicates an uploaded part is not an accepted image type.
var ErrUnsupportedType = errors.New("unsupported media type")

var imageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// TempFiles spools multipart uploads into a local directory before they are
// pushed to the media host.
type TempFiles struct {
	Dir string
}

// SaveImage copies an image part to a new file under Dir and returns its path.
func (t TempFiles) SaveImage(header *multipart.FileHeader) (string, error) {
	if header == nil {
		return "", ErrNoFile
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if _, ok := imageTypes[contentType]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dir := t.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(header.Filename)))
	dst, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return dst.Name(), nil
}
