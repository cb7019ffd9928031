package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"safetycheck/api/internal/config"
)

// Custom talks to a self-hosted upload service:
//
//	POST   {endpoint}/upload        multipart: file, folder, basePath
//	DELETE {endpoint}/delete/{key}
//	GET    {endpoint}/file/{key}
type Custom struct {
	endpoint string
	basePath string
	baseURL  string
	http     *resty.Client
}

func NewCustom(cfg config.Storage) (*Custom, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("custom: %w (STORAGE_ENDPOINT)", ErrIncompleteConfig)
	}
	c := resty.New().SetTimeout(60 * time.Second)
	if cfg.AccessKey != "" {
		c.SetAuthToken(cfg.AccessKey)
	}
	return &Custom{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		basePath: cfg.Path,
		baseURL:  cfg.BaseURL,
		http:     c,
	}, nil
}

type customUploadResponse struct {
	ID        string `json:"id"`
	FileID    string `json:"fileId"`
	URL       string `json:"url"`
	PublicURL string `json:"publicUrl"`
	Path      string `json:"path"`
}

func (c *Custom) Upload(ctx context.Context, data []byte, fileName, folder, mimeType string) (Result, error) {
	form := map[string]string{}
	if folder != "" {
		form["folder"] = folder
	}
	if c.basePath != "" {
		form["basePath"] = c.basePath
	}
	var resp customUploadResponse
	r, err := c.http.R().SetContext(ctx).
		SetMultipartField("file", fileName, contentType(mimeType), bytes.NewReader(data)).
		SetFormData(form).
		SetResult(&resp).
		Post(c.endpoint + "/upload")
	if err != nil {
		return Result{}, fmt.Errorf("custom upload: %w", err)
	}
	if r.IsError() {
		return Result{}, fmt.Errorf("custom upload: %s; body: %s", r.Status(), r.String())
	}

	key := firstNonEmpty(resp.ID, resp.FileID, objectKey(c.basePath, folder, fileName))
	link := firstNonEmpty(resp.URL, resp.PublicURL, resp.Path)
	if link == "" {
		link = c.PublicURL(key)
	}
	return Result{URL: link, Key: key, Size: len(data)}, nil
}

func (c *Custom) Delete(ctx context.Context, key string) error {
	r, err := c.http.R().SetContext(ctx).Delete(c.endpoint + "/delete/" + escapeKey(key))
	if err != nil {
		return fmt.Errorf("custom delete: %w", err)
	}
	if r.IsError() {
		return fmt.Errorf("custom delete: %s", r.Status())
	}
	return nil
}

func (c *Custom) PublicURL(key string) string {
	if c.baseURL != "" {
		return joinURL(c.baseURL, key)
	}
	return c.endpoint + "/file/" + escapeKey(key)
}

func escapeKey(key string) string {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
