package storage

import (
	"context"
	"io"
	"time"
)

type FileStorage interface {
	// Upload uploads a file and returns the file path/key
	Upload(ctx context.Context, file io.Reader, path string, contentType string) (string, error)

	// Delete removes a file
	Delete(ctx context.Context, path string) error

	// GetURL generates a public URL for path
	GetURL(ctx context.Context, path string, expiry time.Duration) (string, error)

	// PathFromURL reverses GetURL; values that are not URLs of this storage are returned as-is
	PathFromURL(url string) string
}
