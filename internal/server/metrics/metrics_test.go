package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGinMiddleware_LabelsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/posts/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/posts/:id", "418"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/posts/123", nil))
	require.Equal(t, http.StatusTeapot, w.Code)

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/posts/:id", "418"))
	assert.Equal(t, before+1, after)
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(storageOps.WithLabelValues("upload", "false"))
	RecordStorage("upload", errors.New("x"))
	assert.Equal(t, before+1, testutil.ToFloat64(storageOps.WithLabelValues("upload", "false")))

	before = testutil.ToFloat64(jobRuns.WithLabelValues("purge", "true"))
	RecordJob("purge", 0, true)
	assert.Equal(t, before+1, testutil.ToFloat64(jobRuns.WithLabelValues("purge", "true")))

	conns := testutil.ToFloat64(realtimeConnections)
	RealtimeConnected()
	RealtimeDisconnected()
	assert.Equal(t, conns, testutil.ToFloat64(realtimeConnections))

	RecordAuth("login", "ok")
	RecordPush("sent")
	RecordRealtimeEvent("new-message")
	RealtimeDropped()
}

func TestHandler_Exposes(t *testing.T) {
	RecordAuth("register", "ok")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(b), "academyhub_auth_attempts_total"))
}
