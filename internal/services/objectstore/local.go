package objectstore

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"reelforge/internal/services"
)

// Local copies artifacts into a directory. It backs single-host setups where
// a web server or shared mount serves the output directory.
type Local struct {
	root      string
	publicURL string
	prefix    string
}

// NewLocal constructs a local uploader rooted at dir.
func NewLocal(dir, publicURL, prefix string) (*Local, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "local", "output_dir required", nil)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "local", "resolve output_dir", err)
	}
	return &Local{root: abs, publicURL: strings.TrimSpace(publicURL), prefix: prefix}, nil
}

// Upload copies localPath to root/prefix/key atomically.
func (l *Local) Upload(ctx context.Context, localPath, key string) (string, error) {
	objKey, err := objectKey(l.prefix, key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrCancelled, "storage", "upload", "", err)
	}
	dest := filepath.Join(l.root, filepath.FromSlash(objKey))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", services.Wrap(services.ErrCollaborator, "storage", "upload", "create directory", err)
	}
	if err := copyFile(localPath, dest); err != nil {
		return "", services.Wrap(services.ErrCollaborator, "storage", "upload", "copy artifact", err)
	}
	if l.publicURL != "" {
		return joinURL(l.publicURL, objKey), nil
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}).String(), nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
