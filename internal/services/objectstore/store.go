package objectstore

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"reelforge/internal/config"
	"reelforge/internal/services"
)

// Uploader publishes a local artifact under a logical key and returns its
// public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
}

// New selects the backend named in cfg.Storage.
func New(ctx context.Context, cfg *config.Config) (Uploader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "", config.StorageBackendLocal:
		return NewLocal(cfg.Storage.OutputDir, cfg.Storage.PublicURL, cfg.Storage.Prefix)
	case config.StorageBackendS3:
		return NewS3(ctx, cfg.Storage)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "storage", "select backend",
			fmt.Sprintf("unsupported backend %q", cfg.Storage.Backend), nil)
	}
}

// objectKey joins the configured prefix and key into a clean slash path. The
// key is cleaned on its own so it can never climb out of the prefix.
func objectKey(prefix, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "upload", "key required", nil)
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" {
		return "", services.Wrap(services.ErrValidation, "storage", "upload", fmt.Sprintf("invalid key %q", key), nil)
	}
	return path.Join(strings.Trim(prefix, "/"), cleaned), nil
}

func contentType(localPath string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath))); ct != "" {
		return ct
	}
	switch strings.ToLower(filepath.Ext(localPath)) {
	case ".mp4":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	}
	return "application/octet-stream"
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
