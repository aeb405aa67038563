// Package media stores MMS image attachments on disk and hands back opaque
// reference paths. The core treats those refs as plain strings.
package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"smsrelay/internal/observability/metrics"
)

var (
	ErrNotImage = errors.New("media: only image uploads allowed")
	ErrTooLarge = errors.New("media: upload exceeds size limit")
)

type Store struct {
	dir      string
	maxBytes int64
}

func New(dir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create upload dir: %w", err)
	}
	return &Store{dir: dir, maxBytes: maxBytes}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save writes an uploaded image and returns its reference, e.g.
// "uploads/1712345678901-3f2a9c1e.jpg". Filenames are generated, never taken
// from the client; the original name only contributes its extension,
// truncated to 10 characters.
func (s *Store) Save(originalName, contentType string, r io.Reader) (string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		metrics.MediaUploadsTotal.WithLabelValues("rejected").Inc()
		return "", ErrNotImage
	}

	ext := filepath.Ext(originalName)
	if len(ext) > 10 {
		ext = ext[:10]
	}
	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
	target := filepath.Join(s.dir, name)

	dst, err := os.Create(target)
	if err != nil {
		metrics.MediaUploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("media: create file: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(r, s.maxBytes+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(target)
		metrics.MediaUploadsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("media: write file: %w", err)
	}
	if n > s.maxBytes {
		_ = os.Remove(target)
		metrics.MediaUploadsTotal.WithLabelValues("rejected").Inc()
		return "", ErrTooLarge
	}

	metrics.MediaUploadsTotal.WithLabelValues("stored").Inc()
	return path.Join("uploads", name), nil
}
