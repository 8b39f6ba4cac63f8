package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/xid"
)

// FileSystemStore writes images into one flat directory. The server serves
// that directory under the store's URL prefix.
type FileSystemStore struct {
	root   string
	prefix string
}

// NewFileSystemStore creates the root directory if needed.
func NewFileSystemStore(root, prefix string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &FileSystemStore{root: root, prefix: prefix}, nil
}

// Root returns the directory images are stored in.
func (s *FileSystemStore) Root() string {
	return s.root
}

// Prefix returns the URL path the images are served under.
func (s *FileSystemStore) Prefix() string {
	return s.prefix
}

// Put stores r under a fresh xid-based name. The original file name is not
// used for the stored object, only the content type decides the extension.
func (s *FileSystemStore) Put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	ext, ok := ExtensionFor(contentType)
	if !ok {
		return "", fmt.Errorf("unsupported image type %q", contentType)
	}
	key := xid.New().String() + ext

	if err := ctx.Err(); err != nil {
		return "", err
	}

	// temp file in the same directory so the rename is atomic
	tmp, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write image %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return "", fmt.Errorf("failed to set image permissions: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.root, key)); err != nil {
		return "", fmt.Errorf("failed to rename image: %w", err)
	}

	success = true
	return joinURL(s.prefix, key), nil
}
