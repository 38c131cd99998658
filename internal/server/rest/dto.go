package rest

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/ccoveille/go-safecast"
	"github.com/dmitrijs2005/academyhub/internal/server/gravatar"
	"github.com/dmitrijs2005/academyhub/internal/server/models"
	"github.com/dmitrijs2005/academyhub/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// maxUploadSize caps multipart request bodies.
const maxUploadSize = 20 << 20

// presentUser fills in the gravatar fallback for users without an avatar.
func (s *Server) presentUser(u *models.User) *models.User {
	if u == nil || u.AvatarURL != nil || !s.cfg.Gravatar.Enabled {
		return u
	}
	cp := *u
	url := gravatar.URL(u.Email, s.cfg.Gravatar)
	cp.AvatarURL = &url
	return &cp
}

func (s *Server) presentUsers(list []*models.User) []*models.User {
	return lo.Map(list, func(u *models.User, _ int) *models.User {
		return s.presentUser(u)
	})
}

// parsePage reads the 1-based ?page= parameter.
func parsePage(c *gin.Context) (int, bool) {
	raw := c.DefaultQuery("page", "1")
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		badRequest(c, "Invalid page")
		return 0, false
	}
	page, err := safecast.ToInt(v)
	if err != nil {
		badRequest(c, "Invalid page")
		return 0, false
	}
	return page, true
}

func parseBool(c *gin.Context, raw string) (bool, bool) {
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(c, "Invalid boolean value")
		return false, false
	}
	return v, true
}

// parseMultipart bounds the body and parses a multipart form. Other
// encodings are left to PostForm.
func parseMultipart(c *gin.Context) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	err := c.Request.ParseMultipartForm(maxUploadSize)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		multipartError(c, err)
		return false
	}
	return true
}

// formFile opens the optional file field. The returned closer is nil when
// the field is absent.
func formFile(c *gin.Context, field string) (*services.Upload, io.Closer, bool) {
	if c.Request.MultipartForm == nil {
		return nil, nil, true
	}
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, true
		}
		multipartError(c, err)
		return nil, nil, false
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "Invalid file upload")
		return nil, nil, false
	}
	return uploadFrom(fh, f), f, true
}

func uploadFrom(fh *multipart.FileHeader, f multipart.File) *services.Upload {
	return &services.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
	}
}

func multipartError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return
	}
	badRequest(c, "Invalid multipart form")
}
