package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type objectStoreStub struct {
	saved       map[string][]byte
	contentType string
	err         error
}

func (s *objectStoreStub) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	_ = ctx
	if s.err != nil {
		return "", s.err
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[key] = data
	s.contentType = contentType
	return fmt.Sprintf("https://cdn.example.com/%s", key), nil
}

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(file, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	return file
}

func TestUploaderUploadSuccessRemovesFile(t *testing.T) {
	store := &objectStoreStub{}
	uploader := NewUploader(store, "/avatars/")
	file := writeTemp(t, "me.PNG", "png-bytes")

	asset, err := uploader.Upload(context.Background(), file)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if !strings.HasPrefix(asset.Key, "avatars/") || !strings.HasSuffix(asset.Key, ".png") {
		t.Fatalf("unexpected key %q", asset.Key)
	}
	if asset.URL != "https://cdn.example.com/"+asset.Key {
		t.Fatalf("unexpected url %q", asset.URL)
	}
	if asset.Size != int64(len("png-bytes")) {
		t.Fatalf("unexpected size %d", asset.Size)
	}
	if store.contentType != "image/png" {
		t.Fatalf("unexpected content type %q", store.contentType)
	}
	if string(store.saved[asset.Key]) != "png-bytes" {
		t.Fatalf("unexpected stored bytes %q", store.saved[asset.Key])
	}
	if _, err := os.Stat(file); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected temp file removed, stat err %v", err)
	}
}

func TestUploaderUploadFailureRemovesFile(t *testing.T) {
	uploader := NewUploader(&objectStoreStub{err: errors.New("host down")}, "covers")
	file := writeTemp(t, "cover.jpg", "jpg-bytes")

	asset, err := uploader.Upload(context.Background(), file)
	if err == nil {
		t.Fatal("expected upload error")
	}
	if asset.URL != "" {
		t.Fatalf("expected no url on failure got %q", asset.URL)
	}
	if _, err := os.Stat(file); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected temp file removed, stat err %v", err)
	}
}

func TestUploaderWithoutStoreRemovesFile(t *testing.T) {
	uploader := NewUploader(nil, "")
	file := writeTemp(t, "x.gif", "gif")

	if _, err := uploader.Upload(context.Background(), file); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable got %v", err)
	}
	if _, err := os.Stat(file); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected temp file removed, stat err %v", err)
	}
}

func TestUploaderEmptyPath(t *testing.T) {
	uploader := NewUploader(&objectStoreStub{}, "")
	if _, err := uploader.Upload(context.Background(), ""); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile got %v", err)
	}
}

func fileHeader(t *testing.T, field, filename, contentType, contents string) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write([]byte(contents)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := req.ParseMultipartForm(1 << 20); err != nil {
		t.Fatalf("parse multipart: %v", err)
	}
	return req.MultipartForm.File[field][0]
}

func TestTempFilesSaveImage(t *testing.T) {
	dir := t.TempDir()
	temps := TempFiles{Dir: dir}

	path, err := temps.SaveImage(fileHeader(t, "avatar", "me.png", "image/png", "png-bytes"))
	if err != nil {
		t.Fatalf("save image: %v", err)
	}
	if filepath.Dir(path) != dir || filepath.Ext(path) != ".png" {
		t.Fatalf("unexpected temp path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read temp: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected temp contents %q", data)
	}
}

func TestTempFilesRejectsNonImages(t *testing.T) {
	temps := TempFiles{Dir: t.TempDir()}

	_, err := temps.SaveImage(fileHeader(t, "avatar", "run.sh", "text/x-shellscript", "echo"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected unsupported type got %v", err)
	}
	if _, err := temps.SaveImage(nil); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile got %v", err)
	}
}
