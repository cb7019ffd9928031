package blob

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"safetycheck/api/internal/config"
)

const defaultAzureContainer = "brk-inspecoes"

// Azure stores blobs in a single container. STORAGE_ACCESS_KEY carries the
// account connection string.
type Azure struct {
	client    *azblob.Client
	container string
	basePath  string
	baseURL   string
}

func NewAzure(cfg config.Storage) (*Azure, error) {
	if cfg.AccessKey == "" {
		return nil, fmt.Errorf("azure: %w (STORAGE_ACCESS_KEY)", ErrIncompleteConfig)
	}
	client, err := azblob.NewClientFromConnectionString(cfg.AccessKey, nil)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}
	container := cfg.Bucket
	if container == "" {
		container = defaultAzureContainer
	}
	return &Azure{client: client, container: container, basePath: cfg.Path, baseURL: cfg.BaseURL}, nil
}

func (a *Azure) Upload(ctx context.Context, data []byte, fileName, folder, mimeType string) (Result, error) {
	key := objectKey(a.basePath, folder, fileName)
	mime := contentType(mimeType)
	_, err := a.client.UploadBuffer(ctx, a.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &mime},
	})
	if err != nil {
		return Result{}, fmt.Errorf("azure upload: %w", err)
	}
	return Result{URL: a.PublicURL(key), Key: key, Size: len(data)}, nil
}

func (a *Azure) Delete(ctx context.Context, key string) error {
	if _, err := a.client.DeleteBlob(ctx, a.container, key, nil); err != nil {
		return fmt.Errorf("azure delete: %w", err)
	}
	return nil
}

func (a *Azure) PublicURL(key string) string {
	if a.baseURL != "" {
		return joinURL(a.baseURL, key)
	}
	return joinURL(joinURL(a.client.URL(), a.container), key)
}
