package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"safetycheck/api/internal/config"
)

// S3 stores objects in any S3-compatible bucket.
type S3 struct {
	client   *minio.Client
	bucket   string
	basePath string
	baseURL  string
}

func NewS3(cfg config.Storage) (*S3, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3: %w (STORAGE_ENDPOINT, STORAGE_BUCKET, STORAGE_ACCESS_KEY, STORAGE_SECRET_KEY)", ErrIncompleteConfig)
	}
	host, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &S3{client: client, bucket: cfg.Bucket, basePath: cfg.Path, baseURL: cfg.BaseURL}, nil
}

// splitEndpoint accepts "host:port" or a full URL; an explicit scheme wins
// over the UseSSL flag.
func splitEndpoint(endpoint string, useSSL bool) (string, bool) {
	if !strings.Contains(endpoint, "://") {
		return strings.TrimRight(endpoint, "/"), useSSL
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return strings.TrimRight(endpoint, "/"), useSSL
	}
	return parsed.Host, parsed.Scheme == "https"
}

func (s *S3) Upload(ctx context.Context, data []byte, fileName, folder, mimeType string) (Result, error) {
	key := objectKey(s.basePath, folder, fileName)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(mimeType),
	})
	if err != nil {
		return Result{}, fmt.Errorf("s3 put object: %w", err)
	}
	return Result{URL: s.PublicURL(key), Key: key, Size: len(data)}, nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("s3 remove object: %w", err)
	}
	return nil
}

// PublicURL uses STORAGE_BASE_URL when set, otherwise a path-style URL on
// the endpoint.
func (s *S3) PublicURL(key string) string {
	if s.baseURL != "" {
		return joinURL(s.baseURL, key)
	}
	endpoint := s.client.EndpointURL()
	return joinURL(endpoint.Scheme+"://"+endpoint.Host+"/"+s.bucket, key)
}
