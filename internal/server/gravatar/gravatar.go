// Package gravatar builds fallback avatar URLs for users who never uploaded one.
package gravatar

import (
	"crypto/md5"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/academyhub/internal/server/config"
)

const baseURL = "https://www.gravatar.com/avatar/"

// URL returns the Gravatar address for email, or "" when gravatar is
// disabled or email is empty.
func URL(email string, cfg config.GravatarConfig) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if !cfg.Enabled || email == "" {
		return ""
	}

	hash := md5.Sum([]byte(email))
	u := baseURL + fmt.Sprintf("%x", hash)

	params := url.Values{}
	if IsValidDefaultImage(cfg.DefaultImage) {
		params.Set("d", cfg.DefaultImage)
	}
	if IsValidSize(cfg.Size) {
		params.Set("s", strconv.Itoa(cfg.Size))
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func IsValidDefaultImage(d string) bool {
	switch d {
	case "404", "mp", "identicon", "monsterid", "wavatar", "retro", "robohash", "blank":
		return true
	}
	return false
}

// IsValidSize reports whether size is within Gravatar's 1..2048 pixels.
func IsValidSize(size int) bool {
	return size >= 1 && size <= 2048
}
