// Package storage defines the pluggable file-storage contract used for post
// media, message attachments and avatars.
//
// Objects are addressed by a logical bucket and a path inside it. Backends
// live in subpackages: httprelay forwards to a storage service over HTTP,
// s3store writes to S3-compatible object storage and localfs implements the
// storage service itself on top of a directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// SecretHeader carries the shared secret that authorizes writes against the
// storage service.
const SecretHeader = "X-Storage-Secret"

var (
	ErrUploadFailed = errors.New("Upload failed")
	ErrRemoveFailed = errors.New("Remove failed")
	ErrInvalidPath  = errors.New("invalid storage path")
)

// UploadResult describes a stored object.
type UploadResult struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// Adapter is implemented by every storage backend.
type Adapter interface {
	// Upload stores the content of r as bucket/path.
	Upload(ctx context.Context, bucket, path string, r io.Reader) (*UploadResult, error)
	// URL returns the public address of bucket/path. It performs no I/O.
	URL(bucket, path string) string
	// Remove deletes bucket/path.
	Remove(ctx context.Context, bucket, path string) error
}

// ValidateKey rejects bucket and path values that could address anything
// outside the bucket.
func ValidateKey(bucket, p string) error {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return fmt.Errorf("%w: bucket %q", ErrInvalidPath, bucket)
	}
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, `\`) {
		return fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return nil
}

// ObjectName returns a fresh random object name keeping the extension of
// filename, e.g. "5f0c...e1.jpg".
func ObjectName(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return uuid.NewString() + ext
}
