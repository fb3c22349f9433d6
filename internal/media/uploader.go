package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/logging"
)

var (
	// ErrNoFile indicates no local file path was supplied.
	ErrNoFile = errors.New("no file to upload")
	// ErrStoreUnavailable indicates the uploader has no remote store configured.
	ErrStoreUnavailable = errors.New("media store unavailable")
)

// ObjectStore persists content on the remote media host and returns its public URL.
type ObjectStore interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

// Asset describes a file pushed to the media host.
type Asset struct {
	URL         string
	Key         string
	Size        int64
	ContentType string
}

// Uploader pushes a local temp file to the media host. The local file is
// removed afterwards whether or not the upload succeeded.
type Uploader struct {
	store  ObjectStore
	prefix string
}

// NewUploader returns an Uploader that stores objects under prefix.
func NewUploader(store ObjectStore, prefix string) *Uploader {
	return &Uploader{store: store, prefix: strings.Trim(prefix, "/")}
}

// Upload makes a single attempt to push localPath to the media host.
func (u *Uploader) Upload(ctx context.Context, localPath string) (Asset, error) {
	if localPath == "" {
		return Asset{}, ErrNoFile
	}
	defer Remove(ctx, localPath)

	if u == nil || u.store == nil {
		return Asset{}, ErrStoreUnavailable
	}

	file, err := os.Open(localPath)
	if err != nil {
		return Asset{}, fmt.Errorf("open %s: %w", filepath.Base(localPath), err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Asset{}, fmt.Errorf("stat %s: %w", filepath.Base(localPath), err)
	}

	contentType, err := sniffContentType(file, localPath)
	if err != nil {
		return Asset{}, err
	}

	key := path.Join(u.prefix, uuid.NewString()+strings.ToLower(filepath.Ext(localPath)))
	url, err := u.store.Save(ctx, key, file, contentType)
	if err != nil {
		return Asset{}, err
	}

	logging.FromContext(ctx).Info("media uploaded", slog.String("key", key), slog.Int64("size", info.Size()))

	return Asset{URL: url, Key: key, Size: info.Size(), ContentType: contentType}, nil
}

// Remove deletes a local temp file, logging anything other than a missing file.
func Remove(ctx context.Context, localPath string) {
	if localPath == "" {
		return
	}
	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.FromContext(ctx).Warn("remove temp file", slog.String("path", localPath), slog.Any("error", err))
	}
}

func sniffContentType(f *os.File, name string) (string, error) {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt, nil
	}

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", filepath.Base(name), err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind %s: %w", filepath.Base(name), err)
	}
	return http.DetectContentType(head[:n]), nil
}
