// Package local stores objects as files under a base directory. Importing
// it registers the "local" storage provider.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kbukum/captiongen/logger"
	"github.com/kbukum/captiongen/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderLocal, func(cfg storage.Config, log *logger.Logger) (storage.Storage, error) {
		limit, err := cfg.MaxBytes()
		if err != nil {
			return nil, err
		}
		return New(cfg.BasePath, limit)
	})
}

const tmpPrefix = ".upload-"

// Storage implements storage.Storage on the local filesystem.
type Storage struct {
	root    string
	maxSize int64
}

// New creates a store rooted at basePath. maxSize <= 0 disables the limit.
func New(basePath string, maxSize int64) (*Storage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create base path: %w", err)
	}
	return &Storage{root: abs, maxSize: maxSize}, nil
}

// Path maps key to a file under the root. Keys that escape the root are
// rejected.
func (s *Storage) Path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if key == "" || clean == "." || !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidKey, key)
	}
	return filepath.Join(s.root, clean), nil
}

// Upload writes r to a temporary file and renames it over key.
func (s *Storage) Upload(ctx context.Context, key string, r io.Reader) (int64, error) {
	path, err := s.Path(key)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("storage: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("storage: create file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: src})
	if err != nil {
		return 0, fmt.Errorf("storage: write %s: %w", key, err)
	}
	if s.maxSize > 0 && n > s.maxSize {
		return 0, storage.ErrTooLarge
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("storage: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("storage: commit %s: %w", key, err)
	}
	committed = true
	return n, nil
}

// Download opens the file for key.
func (s *Storage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", key, err)
	}
	return f, nil
}

// Delete removes the file for key.
func (s *Storage) Delete(_ context.Context, key string) error {
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	s.pruneDirs(filepath.Dir(path))
	return nil
}

// pruneDirs removes dir and its parents up to the root while they are empty.
func (s *Storage) pruneDirs(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root+string(filepath.Separator)) {
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Stat describes the file for key.
func (s *Storage) Stat(_ context.Context, key string) (*storage.FileInfo, error) {
	path, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w", key, err)
	}
	fi := fileInfo(key, info)
	return &fi, nil
}

// List walks the root and returns files whose key starts with prefix.
// Lock files, dot files and in-flight uploads are skipped.
func (s *Storage) List(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	var out []storage.FileInfo
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, fileInfo(key, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list %q: %w", prefix, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func fileInfo(key string, info fs.FileInfo) storage.FileInfo {
	ct := mime.TypeByExtension(filepath.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return storage.FileInfo{Key: key, Size: info.Size(), LastModified: info.ModTime(), ContentType: ct}
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var (
	_ storage.Storage      = (*Storage)(nil)
	_ storage.PathResolver = (*Storage)(nil)
)
