package share

import (
	"context"
	"errors"
	"strconv"
	"time"
)

const (
	// ContentType is the media type every share is stored and served with.
	ContentType = "text/plain; charset=utf-8"
	// MaxSize is the largest accepted upload in bytes.
	MaxSize int64 = 2 * 1024 * 1024
	// TimeLayout renders timestamps as ISO-8601 UTC with millisecond precision.
	TimeLayout = "2006-01-02T15:04:05.000Z"
)

var (
	ErrNotFound      = errors.New("share not found")
	ErrAlreadyExists = errors.New("share already exists")
)

// Share is an immutable uploaded document.
type Share struct {
	ID          ID
	Content     []byte
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

// Metadata returns the auxiliary fields stored next to the content.
func (s *Share) Metadata() map[string]string {
	return map[string]string{
		"uploadedAt": FormatTime(s.UploadedAt),
		"size":       strconv.FormatInt(s.Size, 10),
	}
}

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Repository defines the interface for share storage operations.
type Repository interface {
	// Create stores s unless a share with the same ID exists, in which case
	// it returns ErrAlreadyExists and leaves the stored share untouched.
	Create(ctx context.Context, s *Share) error
	// Get returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id ID) (*Share, error)
}
