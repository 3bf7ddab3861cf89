// Package media stores uploaded images and videos for use in content
// fields such as team photos and the hero video. Files are addressed by the
// hex SHA-256 of their bytes, so uploading the same file twice yields the
// same id.
package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

// MaxSize is the maximum allowed upload size (5 MiB).
const MaxSize = 5 << 20

// Sentinel errors for media operations.
var (
	ErrNotFound    = errors.New("media: not found")
	ErrTooLarge    = fmt.Errorf("media: exceeds maximum size of %d bytes", MaxSize)
	ErrUnsupported = errors.New("media: only image and video files can be uploaded")
)

// Item describes a stored file.
type Item struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mimeType"`
	Size      int64     `json:"size"`
	AltText   string    `json:"altText"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository persists media bytes and metadata.
type Repository interface {
	// Put stores data under item.ID. Storing an existing id keeps the
	// original row.
	Put(ctx context.Context, item Item, data []byte) (Item, error)
	Get(ctx context.Context, id string) (Item, []byte, error)
	List(ctx context.Context) ([]Item, error)
	SetAlt(ctx context.Context, id, alt string) (Item, error)
	Delete(ctx context.Context, id string) error
}

// Library validates uploads and hands them to a Repository.
type Library struct {
	repo Repository
}

// NewLibrary creates a Library.
func NewLibrary(repo Repository) *Library {
	return &Library{repo: repo}
}

// URL is the public path a stored file is served from.
func URL(id string) string {
	return "/media/" + id
}

// servable lists the sniffed types Upload accepts. SVG and anything
// text-based are absent: they can carry script.
var servable = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"video/mp4":  true,
	"video/webm": true,
}

// Servable reports whether mimeType may be served inline.
func Servable(mimeType string) bool {
	return servable[mimeType]
}

// Detect returns the media type of data from its leading bytes.
func Detect(data []byte) string {
	return strings.TrimSpace(strings.SplitN(http.DetectContentType(data), ";", 2)[0])
}

// Upload reads r, checks size and type, and stores it. The type is always
// sniffed from the content; whatever the client declared is ignored.
func (l *Library) Upload(ctx context.Context, filename string, r io.Reader) (Item, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return Item{}, fmt.Errorf("media: read: %w", err)
	}
	if len(data) > MaxSize {
		return Item{}, ErrTooLarge
	}
	if len(data) == 0 {
		return Item{}, fmt.Errorf("media: empty upload")
	}

	mimeType := Detect(data)
	if !Servable(mimeType) {
		return Item{}, fmt.Errorf("%w: got %s", ErrUnsupported, mimeType)
	}

	sum := sha256.Sum256(data)
	item := Item{
		ID:       hex.EncodeToString(sum[:]),
		Filename: path.Base(strings.ReplaceAll(filename, "\\", "/")),
		MimeType: mimeType,
		Size:     int64(len(data)),
	}
	stored, err := l.repo.Put(ctx, item, data)
	if err != nil {
		return Item{}, fmt.Errorf("media: store: %w", err)
	}
	return withURL(stored), nil
}

// Get returns a file's metadata and bytes.
func (l *Library) Get(ctx context.Context, id string) (Item, []byte, error) {
	if !validID(id) {
		return Item{}, nil, ErrNotFound
	}
	it, data, err := l.repo.Get(ctx, id)
	if err != nil {
		return Item{}, nil, err
	}
	return withURL(it), data, nil
}

// List returns every stored file, newest first.
func (l *Library) List(ctx context.Context) ([]Item, error) {
	items, err := l.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i] = withURL(items[i])
	}
	return items, nil
}

// Describe sets a file's alt text.
func (l *Library) Describe(ctx context.Context, id, alt string) (Item, error) {
	if !validID(id) {
		return Item{}, ErrNotFound
	}
	it, err := l.repo.SetAlt(ctx, id, strings.TrimSpace(alt))
	if err != nil {
		return Item{}, err
	}
	return withURL(it), nil
}

// Delete removes a file. Content fields that still point at it will
// render a broken image.
func (l *Library) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	return l.repo.Delete(ctx, id)
}

func withURL(it Item) Item {
	it.URL = URL(it.ID)
	return it
}

func validID(id string) bool {
	if len(id) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
