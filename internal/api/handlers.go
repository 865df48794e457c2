// Package api wires up the Gin HTTP router with the client-facing cache
// endpoints, health probes, the OpenAPI description, and metrics.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"unicode/utf8"

	"distributed-cache/internal/cache"
	"distributed-cache/internal/cluster"
	"distributed-cache/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Limit payload size to 5 MiB.
const maxDocumentSize = 5 * 1024 * 1024

// Handler holds the dependencies injected from main.
type Handler struct {
	dc  *cluster.DistributedCache
	log *logrus.Entry
}

// NewHandler creates a Handler.
func NewHandler(dc *cluster.DistributedCache) *Handler {
	return &Handler{dc: dc, log: logrus.WithField("component", "api")}
}

// Register mounts all routes on r.
func (h *Handler) Register(r *gin.Engine) {
	// Public cache API — used by clients.
	v1 := r.Group("/api/v1")
	v1.GET("/cache/:key", h.Get)
	v1.PUT("/cache/:key", h.Put)
	v1.GET("/openapi.json", h.OpenAPI)

	r.GET("/openapi.json", h.OpenAPI)
	r.GET("/openapi", func(c *gin.Context) {
		c.Redirect(http.StatusTemporaryRedirect, "/api/v1/openapi.json")
	})

	// Health probes — always healthy while the process serves requests.
	for _, path := range []string{"/health", "/health/live", "/health/ready", "/health/started"} {
		r.GET(path, h.Health)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Get handles GET /api/v1/cache/:key and returns the raw value bytes.
func (h *Handler) Get(c *gin.Context) {
	key := c.Param("key")
	metrics.CacheGets.Inc()

	value, err := h.dc.GetString(key)
	if err != nil {
		h.log.Infof("Request for '%s' failed: %v", key, err)
		h.abortWithError(c, err)
		return
	}
	metrics.CacheHits.Inc()
	c.String(http.StatusOK, value)
}

// Put handles PUT /api/v1/cache/:key with the request body as the value.
// Values above 5 MiB or not valid UTF-8 are rejected with 400.
func (h *Handler) Put(c *gin.Context) {
	key := c.Param("key")

	if c.Request.ContentLength > maxDocumentSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "overflow"})
		return
	}

	// Read one byte past the limit so an undeclared oversize body is caught.
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDocumentSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(body) > maxDocumentSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message body exceeded " + strconv.Itoa(maxDocumentSize) + " bytes"})
		return
	}
	if !utf8.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message body was not valid UTF-8"})
		return
	}

	metrics.CachePuts.Inc()
	h.dc.PutBytes(key, body)
	c.Status(http.StatusNoContent)
}

// Health answers the liveness/readiness/startup probes.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "node": h.dc.LocalOrdinal()})
}

// abortWithError maps the core error taxonomy to HTTP statuses.
func (h *Handler) abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, cache.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, cache.ErrMalformed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
