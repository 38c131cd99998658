package httprelay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dmitrijs2005/academyhub/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURL_IsPure(t *testing.T) {
	c := New("http://localhost:3000/storage/", "", nil)
	assert.Equal(t, "http://localhost:3000/storage/avatars/a.png", c.URL("avatars", "a.png"))
	assert.Equal(t, c.URL("avatars", "a.png"), c.URL("avatars", "a.png"))
}

func TestUpload_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/upload", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "s3cret", r.Header.Get(storage.SecretHeader))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "post-media", r.FormValue("bucket"))
		assert.Equal(t, "x.txt", r.FormValue("path"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		b, _ := io.ReadAll(f)
		assert.Equal(t, "hello", string(b))
		assert.Equal(t, "x.txt", hdr.Filename)

		_ = json.NewEncoder(w).Encode(map[string]string{"path": "x.txt"})
	}))
	defer srv.Close()

	c := New(srv.URL+"/storage", "s3cret", srv.Client())
	res, err := c.Upload(context.Background(), "post-media", "x.txt", strings.NewReader("hello"))
	require.NoError(t, err)

	assert.Equal(t, "x.txt", res.Path)
	assert.Equal(t, srv.URL+"/storage/post-media/x.txt", res.URL)
}

func TestUpload_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "s3cret", srv.Client())
	_, err := c.Upload(context.Background(), "avatars", "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, storage.ErrUploadFailed)
}

func TestUpload_RejectsTraversal(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(srv.URL, "s3cret", srv.Client())
	_, err := c.Upload(context.Background(), "avatars", "../a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, storage.ErrInvalidPath)
	assert.False(t, called)
}

func TestRemove(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/remove", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "s3cret", r.Header.Get(storage.SecretHeader))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "s3cret", srv.Client())
	require.NoError(t, c.Remove(context.Background(), "avatars", "a.png"))
	assert.Equal(t, map[string]string{"bucket": "avatars", "path": "a.png"}, got)
}

func TestRemove_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "s3cret", srv.Client())
	assert.ErrorIs(t, c.Remove(context.Background(), "avatars", "a.png"), storage.ErrRemoveFailed)
}

func TestUpload_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, "s3cret", nil)
	_, err := c.Upload(context.Background(), "avatars", "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, storage.ErrUploadFailed)
}
