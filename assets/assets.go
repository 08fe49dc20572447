// Package assets stores uploaded destination images on local disk and
// hands back the public URL they are served under.
package assets

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/loiphan2202/BAT/apperr"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

const (
	MaxImageSize = 10 << 20
	ThumbWidth   = 300
	thumbDir     = "thumbs"
)

var (
	allowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	allowedMIMEs      = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
)

type Store struct {
	dir     string
	baseURL string
	maxSize int64
}

// NewStore keeps files under dir; baseURL is the public origin the dir is
// mounted at (PUBLIC_BASE_URL).
func NewStore(dir, baseURL string) *Store {
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), maxSize: MaxImageSize}
}

func (s *Store) Dir() string { return s.dir }

// URL returns the public address of a stored file name.
func (s *Store) URL(name string) string {
	return s.baseURL + "/uploads/" + name
}

// SaveImage validates r as an image, re-encodes it (dropping EXIF), writes
// a 300px wide thumbnail next to it and returns the original's public URL.
func (s *Store) SaveImage(r io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.Contains(allowedExtensions, ext) {
		return "", apperr.Field("image", "must be a jpg, png, gif or webp file")
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", apperr.Internal("read upload", err)
	}
	if int64(len(data)) > s.maxSize {
		return "", apperr.Field("image", "must be at most 10MB")
	}
	if len(data) == 0 {
		return "", apperr.Field("image", "is required")
	}
	if mime := http.DetectContentType(data); !slices.Contains(allowedMIMEs, mime) {
		return "", apperr.Field("image", "must be an image")
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", apperr.Field("image", "could not be decoded")
	}

	if err := os.MkdirAll(filepath.Join(s.dir, thumbDir), 0o755); err != nil {
		return "", apperr.Internal("create upload dir", err)
	}

	// webp has no encoder; store it as jpeg
	if ext == ".webp" {
		ext = ".jpg"
	}
	name := uuid.New().String() + ext

	if err := imaging.Save(img, filepath.Join(s.dir, name)); err != nil {
		return "", apperr.Internal("save image", err)
	}
	thumb := imaging.Resize(img, ThumbWidth, 0, imaging.Lanczos)
	if err := imaging.Save(thumb, filepath.Join(s.dir, thumbDir, name)); err != nil {
		os.Remove(filepath.Join(s.dir, name))
		return "", apperr.Internal(fmt.Sprintf("save thumbnail %s", name), err)
	}
	return s.URL(name), nil
}

// Remove deletes a stored image and its thumbnail by public URL. Unknown
// URLs are ignored.
func (s *Store) Remove(url string) {
	prefix := s.baseURL + "/uploads/"
	if !strings.HasPrefix(url, prefix) {
		return
	}
	name := filepath.Base(strings.TrimPrefix(url, prefix))
	os.Remove(filepath.Join(s.dir, name))
	os.Remove(filepath.Join(s.dir, thumbDir, name))
}
