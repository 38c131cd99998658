// Package localfs is the storage service behind the httprelay backend: it
// keeps objects in a directory tree rooted at a configured path and exposes
// upload, remove and download endpoints.
package localfs

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/dmitrijs2005/academyhub/internal/logging"
	"github.com/dmitrijs2005/academyhub/internal/storage"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

// MaxUploadBytes caps a single upload.
const MaxUploadBytes = 25 << 20

type Service struct {
	root   *os.Root
	secret []byte
	logger logging.Logger
}

// New opens (creating if needed) the directory dir as the storage root.
// Uploads and removals must present secret in storage.SecretHeader; with an
// empty secret they are always refused.
func New(dir, secret string, logger logging.Logger) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	return &Service{root: root, secret: []byte(secret), logger: logger.With("module", "localfs")}, nil
}

func (s *Service) Close() error {
	return s.root.Close()
}

// Register mounts the endpoints on rg:
//
//	POST /upload            multipart file, bucket, path -> {"path": ...}
//	POST /remove            {"bucket": ..., "path": ...} -> {"success": true}
//	GET  /:bucket/*path     object content
//
// Only GET is public.
func (s *Service) Register(rg *gin.RouterGroup) {
	rg.POST("/upload", s.requireSecret, s.handleUpload)
	rg.POST("/remove", s.requireSecret, s.handleRemove)
	rg.GET("/:bucket/*path", s.handleGet)
}

func (s *Service) requireSecret(c *gin.Context) {
	got := c.GetHeader(storage.SecretHeader)
	if len(s.secret) == 0 || subtle.ConstantTimeCompare([]byte(got), s.secret) != 1 {
		s.logger.Warn(c.Request.Context(), "storage write refused", "path", c.Request.URL.Path, "ip", c.ClientIP())
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func objectName(bucket, p string) string {
	return filepath.FromSlash(path.Join(bucket, p))
}

// Save writes r to bucket/p and returns the number of bytes stored.
func (s *Service) Save(bucket, p string, r io.Reader) (int64, error) {
	if err := storage.ValidateKey(bucket, p); err != nil {
		return 0, err
	}

	name := objectName(bucket, p)
	if err := s.root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return 0, err
	}

	f, err := s.root.Create(name)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.root.Remove(name)
		return 0, err
	}
	return n, nil
}

// Delete removes bucket/p. Removing a missing object is not an error.
func (s *Service) Delete(bucket, p string) error {
	if err := storage.ValidateKey(bucket, p); err != nil {
		return err
	}
	err := s.root.Remove(objectName(bucket, p))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Service) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadBytes)

	file, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	bucket := c.PostForm("bucket")
	p := c.PostForm("path")
	if p == "" {
		p = file.Filename
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer src.Close()

	n, err := s.Save(bucket, p, src)
	if err != nil {
		s.respondError(c.Request.Context(), c, "upload", err)
		return
	}

	s.logger.Debug(c.Request.Context(), "object stored", "bucket", bucket, "path", p, "size", humanize.Bytes(uint64(n)))
	c.JSON(http.StatusOK, gin.H{"path": p})
}

func (s *Service) handleRemove(c *gin.Context) {
	var req struct {
		Bucket string `json:"bucket"`
		Path   string `json:"path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := s.Delete(req.Bucket, req.Path); err != nil {
		s.respondError(c.Request.Context(), c, "remove", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Service) handleGet(c *gin.Context) {
	bucket := c.Param("bucket")
	p := c.Param("path")
	if len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	if err := storage.ValidateKey(bucket, p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
		return
	}

	f, err := s.root.Open(objectName(bucket, p))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || st.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	http.ServeContent(c.Writer, c.Request, st.Name(), st.ModTime(), f)
}

func (s *Service) respondError(ctx context.Context, c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidPath):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
	default:
		s.logger.Error(ctx, "storage operation failed", "op", op, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
	}
}
