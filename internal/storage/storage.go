// Package storage persists uploaded listing images.
//
// Each backend returns the URL the image will be reachable at; that URL is
// what the client stores in a listing's image field.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/sakif/petcommunity/internal/config"
)

// ImageStore saves one image and returns its public URL.
type ImageStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// allowedTypes maps accepted content types to the extension used for the
// stored object.
var allowedTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ExtensionFor returns the file extension for an accepted image content
// type, or false when the type is not an image we store.
func ExtensionFor(contentType string) (string, bool) {
	ct, _, _ := strings.Cut(contentType, ";")
	ext, ok := allowedTypes[strings.TrimSpace(strings.ToLower(ct))]
	return ext, ok
}

// NewFromConfig creates an ImageStore based on the images config type.
func NewFromConfig(ctx context.Context, cfg config.ImagesConfig) (ImageStore, error) {
	switch cfg.Type {
	case config.ImagesMemory:
		return NewMemoryStore(urlPrefix(cfg)), nil
	case config.ImagesFilesystem:
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem image store requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.FSRoot, urlPrefix(cfg))
	case config.ImagesS3:
		return NewS3Store(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
	default:
		return nil, fmt.Errorf("unknown image store type: %s", cfg.Type)
	}
}

func urlPrefix(cfg config.ImagesConfig) string {
	if cfg.URLPrefix == "" {
		return "/uploads/"
	}
	return cfg.URLPrefix
}

// joinURL joins a URL prefix and an object key with exactly one slash.
func joinURL(prefix, key string) string {
	if strings.Contains(prefix, "://") {
		return strings.TrimRight(prefix, "/") + "/" + key
	}
	return path.Join("/", prefix, key)
}
