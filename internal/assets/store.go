// Package assets stores uploaded event images on the local filesystem and
// hands out opaque references of the form /uploads/<name>.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/domain/ids"
	"github.com/Togather-Foundation/rsvp/internal/metrics"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
)

const (
	// FieldName is the multipart form field carrying the image.
	FieldName = "eventImage"
	// URLPrefix is the path prefix of every reference and of the static route.
	URLPrefix       = "/uploads/"
	DefaultMaxBytes = 5 << 20
)

var (
	ErrTooLarge        = errors.New("image exceeds the maximum upload size")
	ErrUnsupportedType = errors.New("only JPEG, PNG and GIF images are allowed")
	ErrInvalidRef      = errors.New("invalid asset reference")
)

var (
	allowedExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}
	allowedMIME       = []string{"image/jpeg", "image/png", "image/gif"}
	storedName        = regexp.MustCompile(`^` + FieldName + `-[0-9A-HJKMNP-TV-Z]{26}\.(jpg|png|gif)$`)
)

// Upload is an image received from a client.
type Upload struct {
	Filename string
	Content  io.Reader
}

// StoredFile describes a file currently held by the store.
type StoredFile struct {
	Ref     string
	ModTime time.Time
}

// LocalStore keeps images in a single directory.
type LocalStore struct {
	dir      string
	maxBytes int64
	logger   zerolog.Logger
}

func NewLocalStore(dir string, maxBytes int64, logger zerolog.Logger) (*LocalStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{
		dir:      dir,
		maxBytes: maxBytes,
		logger:   logger.With().Str("component", "assets").Logger(),
	}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) MaxBytes() int64 { return s.maxBytes }

// Save validates the upload by extension and sniffed content and writes it
// under a fresh name. The file only becomes visible once fully written.
func (s *LocalStore) Save(ctx context.Context, upload *Upload) (string, error) {
	if upload == nil || upload.Content == nil {
		return "", ErrUnsupportedType
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(upload.Filename))] {
		return "", ErrUnsupportedType
	}

	data, err := io.ReadAll(io.LimitReader(upload.Content, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}
	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedMIME...) {
		return "", ErrUnsupportedType
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := ids.NewULID()
	if err != nil {
		return "", fmt.Errorf("generate asset id: %w", err)
	}
	name := FieldName + "-" + id + mtype.Extension()

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("store upload: %w", err)
	}

	s.logger.Debug().Str("asset", name).Int("bytes", len(data)).Str("mime", mtype.String()).Msg("image stored")
	return URLPrefix + name, nil
}

// Release deletes the file behind ref. Releasing a ref that is already gone
// succeeds.
func (s *LocalStore) Release(ctx context.Context, ref string) error {
	name, err := NameFromRef(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			metrics.RecordAssetRelease("missing")
			return nil
		}
		metrics.RecordAssetRelease("failed")
		return fmt.Errorf("remove %s: %w", name, err)
	}
	metrics.RecordAssetRelease("released")
	return nil
}

// List returns every stored image.
func (s *LocalStore) List(ctx context.Context) ([]StoredFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}
	files := make([]StoredFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !storedName.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, StoredFile{Ref: URLPrefix + entry.Name(), ModTime: info.ModTime()})
	}
	return files, nil
}

// Handler serves stored images. Mount it at URLPrefix.
func (s *LocalStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, URLPrefix)
		if !storedName.MatchString(name) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
		http.ServeFile(w, r, filepath.Join(s.dir, name))
	})
}

// NameFromRef extracts the file name from a reference and rejects anything
// that is not a name this store could have produced.
func NameFromRef(ref string) (string, error) {
	if !strings.HasPrefix(ref, URLPrefix) {
		return "", ErrInvalidRef
	}
	name := strings.TrimPrefix(ref, URLPrefix)
	if !storedName.MatchString(name) {
		return "", ErrInvalidRef
	}
	return name, nil
}
