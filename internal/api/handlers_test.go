package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"distributed-cache/internal/cluster"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	auth := cluster.NewPeerAuthenticator(filepath.Join(t.TempDir(), "missing"))
	dc := cluster.New("clacheless-ORDINAL.local:19090", 0, 30_000_000, auth)

	r := gin.New()
	r.Use(Logger(), Recovery())
	NewHandler(dc).Register(r)
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPutThenGet(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodPut, "/api/v1/cache/greeting", "hello world")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(r, http.MethodGet, "/api/v1/cache/greeting", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello world", w.Body.String())
}

func TestGetMissingKey(t *testing.T) {
	r := newTestRouter(t)
	w := doRequest(r, http.MethodGet, "/api/v1/cache/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutOverwrites(t *testing.T) {
	r := newTestRouter(t)
	doRequest(r, http.MethodPut, "/api/v1/cache/k", "v1")
	doRequest(r, http.MethodPut, "/api/v1/cache/k", "v2")

	w := doRequest(r, http.MethodGet, "/api/v1/cache/k", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v2", w.Body.String())
}

func TestPutRejectsDeclaredOversize(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cache/big", strings.NewReader("tiny"))
	req.ContentLength = 5*1024*1024 + 1

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutRejectsStreamedOversize(t *testing.T) {
	r := newTestRouter(t)
	w := doRequest(r, http.MethodPut, "/api/v1/cache/big", strings.Repeat("a", 5*1024*1024+1))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPutRejectsInvalidUTF8(t *testing.T) {
	r := newTestRouter(t)
	w := doRequest(r, http.MethodPut, "/api/v1/cache/bin", string([]byte{0xff, 0xfe, 0xfd}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	r := newTestRouter(t)
	for _, path := range []string{"/health", "/health/live", "/health/ready", "/health/started"} {
		w := doRequest(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestOpenAPIDocument(t *testing.T) {
	r := newTestRouter(t)

	w := doRequest(r, http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"/api/v1/cache/{key}"`)

	w = doRequest(r, http.MethodGet, "/api/v1/openapi.json", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w := doRequest(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cache_gets_total")
}
