// Package storage keeps uploads, intermediate audio and finished subtitles
// under stable keys. Backends register a factory by provider name; the
// filesystem backend lives in storage/local, the S3 backend in storage/s3.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Errors returned by backends.
var (
	ErrNotFound    = errors.New("storage: object not found")
	ErrTooLarge    = errors.New("storage: object exceeds max_file_size")
	ErrInvalidKey  = errors.New("storage: invalid key")
	ErrNoLocalPath = errors.New("storage: backend does not expose local paths")
)

// FileInfo describes a stored object.
type FileInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ContentType  string    `json:"content_type"`
}

// Storage is a flat key/value object store. Keys use forward slashes.
type Storage interface {
	// Upload stores r under key, replacing any previous object atomically.
	Upload(ctx context.Context, key string, r io.Reader) (int64, error)
	// Download opens the object. The caller closes it.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object; missing objects are not an error.
	Delete(ctx context.Context, key string) error
	Stat(ctx context.Context, key string) (*FileInfo, error)
	// List returns objects whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]FileInfo, error)
}

// PathResolver is implemented by backends whose objects are local files,
// for tools such as ffmpeg that need a path.
type PathResolver interface {
	Path(key string) (string, error)
}

// LocalPath returns the filesystem path of key when s is file backed.
func LocalPath(s Storage, key string) (string, error) {
	pr, ok := s.(PathResolver)
	if !ok {
		return "", ErrNoLocalPath
	}
	return pr.Path(key)
}
