// Package ingest validates uploaded chart images and writes them to
// durable storage under collision-free names.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidUpload means the upload is empty or not an image.
var ErrInvalidUpload = errors.New("invalid upload")

// Ref points at a stored image, both on disk and via its public URL.
type Ref struct {
	Filename string
	Path     string
	URL      string
	MIMEType string
}

// Ingestor stores uploaded images on the local filesystem.
type Ingestor struct {
	dir       string
	urlPrefix string // e.g. http://localhost:8080/uploads
}

// New creates an Ingestor writing into dir, creating it if needed.
func New(dir, urlPrefix string) (*Ingestor, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}
	return &Ingestor{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Ingest validates and stores an uploaded image. The stored name is a
// creation-time prefix plus a random fragment plus the sanitized original
// name, so concurrent uploads of the same file never overwrite each other.
func (i *Ingestor) Ingest(data []byte, mimeType, originalName string) (*Ref, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidUpload)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: content type %q is not an image", ErrInvalidUpload, mimeType)
	}

	name := fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), uuid.NewString()[:8], sanitizeName(originalName))
	path := filepath.Join(i.dir, name)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to store image: %w", err)
	}

	return &Ref{
		Filename: name,
		Path:     path,
		URL:      i.urlPrefix + "/" + name,
		MIMEType: mimeType,
	}, nil
}

// Dir returns the directory images are stored in.
func (i *Ingestor) Dir() string {
	return i.dir
}

// sanitizeName keeps the original file name recognizable while stripping
// path separators and anything else unsafe in a URL path segment.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "chart"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
