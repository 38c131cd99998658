// Package media inspects and normalises uploaded attachments.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	TypeImage = "image"
	TypeVideo = "video"
	TypeAudio = "audio"
	TypeFile  = "file"

	// AvatarSize is the edge of the square avatar thumbnail in pixels.
	AvatarSize = 256
)

var ErrNotAnImage = errors.New("file is not a supported image")

// Kind classifies an attachment from its declared content type, falling back
// to the file extension.
func Kind(filename, contentType string) string {
	ct := contentType
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		ct = mt
	}
	if ct == "" || ct == "application/octet-stream" {
		ct = mime.TypeByExtension(strings.ToLower(path.Ext(filename)))
	}
	switch {
	case strings.HasPrefix(ct, "image/"):
		return TypeImage
	case strings.HasPrefix(ct, "video/"):
		return TypeVideo
	case strings.HasPrefix(ct, "audio/"):
		return TypeAudio
	default:
		return TypeFile
	}
}

// AvatarThumbnail decodes r, crops it to a centred square of AvatarSize and
// re-encodes it as JPEG. EXIF orientation is applied first.
func AvatarThumbnail(r io.Reader) (*bytes.Buffer, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrNotAnImage
		}
		return nil, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}

	thumb := imaging.Fill(img, AvatarSize, AvatarSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode avatar: %w", err)
	}
	return &buf, nil
}
