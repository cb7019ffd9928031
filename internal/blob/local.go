package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"safetycheck/api/internal/config"
)

const (
	defaultLocalRoot   = "./public/uploads"
	defaultLocalPrefix = "/uploads"
)

// Local writes files under Root. Keys are slash-separated paths relative to
// Root and are served by the API under the URL prefix.
type Local struct {
	root     string
	basePath string
	prefix   string
}

func NewLocal(cfg config.Storage) *Local {
	root := cfg.Endpoint
	if root == "" {
		root = defaultLocalRoot
	}
	prefix := cfg.BaseURL
	if prefix == "" {
		prefix = defaultLocalPrefix
	}
	return &Local{root: root, basePath: cfg.Path, prefix: prefix}
}

func (l *Local) Root() string {
	return l.root
}

func (l *Local) Upload(_ context.Context, data []byte, fileName, folder, _ string) (Result, error) {
	key := objectKey(l.basePath, folder, fileName)
	target, err := l.resolve(key)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Result{}, fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("write upload: %w", err)
	}
	return Result{URL: l.PublicURL(key), Key: key, Size: len(data)}, nil
}

// Delete removes the file. A missing file is not an error.
func (l *Local) Delete(_ context.Context, key string) error {
	target, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

func (l *Local) PublicURL(key string) string {
	return joinURL(l.prefix, key)
}

func (l *Local) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(l.root, clean), nil
}
