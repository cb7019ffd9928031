// Package blob stores uploaded inspection photos. The backend is picked by
// STORAGE_TYPE: local disk, S3-compatible (minio), Azure Blob, or a custom
// HTTP upload service.
package blob

import (
	"context"
	"errors"
	"path"
	"strings"

	"safetycheck/api/internal/config"
	"safetycheck/api/internal/log"
)

var ErrIncompleteConfig = errors.New("incomplete storage configuration")

type Result struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Size int    `json:"size"`
}

type Uploader interface {
	Upload(ctx context.Context, data []byte, fileName, folder, mimeType string) (Result, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// New builds the configured backend. Unknown types fall back to local disk.
func New(cfg config.Storage) (Uploader, error) {
	switch cfg.Type {
	case "s3":
		return NewS3(cfg)
	case "azure":
		return NewAzure(cfg)
	case "custom":
		return NewCustom(cfg)
	case "local", "":
		return NewLocal(cfg), nil
	default:
		log.Warnf("unknown storage type %q, using local storage", cfg.Type)
		return NewLocal(cfg), nil
	}
}

// objectKey joins the configured base path, the folder and the file name.
func objectKey(basePath, folder, fileName string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{basePath, folder, fileName} {
		part = strings.Trim(part, "/")
		if part != "" {
			parts = append(parts, part)
		}
	}
	return path.Join(parts...)
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}

func contentType(mimeType string) string {
	if mimeType == "" {
		return "image/jpeg"
	}
	return mimeType
}
