// Package httprelay is a storage.Adapter that forwards uploads and removals
// to a storage service over HTTP (see package localfs for the server side).
package httprelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/academyhub/internal/storage"
)

const defaultTimeout = 30 * time.Second

// Client talks to the storage service at BaseURL.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

// New returns a relay client for baseURL, e.g. "http://localhost:3000/storage".
// secret is sent with every upload and removal in storage.SecretHeader.
// A nil httpClient gets a client with a 30s timeout.
func New(baseURL, secret string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), secret: secret, http: httpClient}
}

var _ storage.Adapter = (*Client)(nil)

func (c *Client) URL(bucket, p string) string {
	return c.baseURL + "/" + bucket + "/" + p
}

// Upload posts a multipart form with the fields file, bucket and path to
// <base>/upload. The service answers with the stored path.
func (c *Client) Upload(ctx context.Context, bucket, p string, r io.Reader) (*storage.UploadResult, error) {
	if err := storage.ValidateKey(bucket, p); err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	fw, err := mw.CreateFormFile("file", path.Base(p))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.WriteField("bucket", bucket); err != nil {
		return nil, err
	}
	if err := mw.WriteField("path", p); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(storage.SecretHeader, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", storage.ErrUploadFailed, resp.StatusCode)
	}

	var out struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", storage.ErrUploadFailed, err)
	}
	if out.Path == "" {
		out.Path = p
	}

	return &storage.UploadResult{Path: out.Path, URL: c.URL(bucket, out.Path)}, nil
}

// Remove posts {"bucket","path"} to <base>/remove.
func (c *Client) Remove(ctx context.Context, bucket, p string) error {
	if err := storage.ValidateKey(bucket, p); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]string{"bucket": bucket, "path": p})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/remove", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(storage.SecretHeader, c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", storage.ErrRemoveFailed, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", storage.ErrRemoveFailed, resp.StatusCode)
	}

	return nil
}
