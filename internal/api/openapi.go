package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OpenAPI serves the API description.
func (h *Handler) OpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", []byte(openAPIDocument))
}

// Hand-maintained OpenAPI 3 description of the public surface. Kept next to
// the handlers so route changes and the document move together.
const openAPIDocument = `{
  "openapi": "3.0.3",
  "info": {
    "title": "distributed-cache",
    "description": "Distributed in-memory key/value cache.",
    "version": "1.0.0"
  },
  "paths": {
    "/api/v1/cache/{key}": {
      "get": {
        "tags": ["cache"],
        "summary": "Retrieve a cached item by key.",
        "parameters": [
          {"name": "key", "in": "path", "required": true, "description": "Cache key.", "schema": {"type": "string"}}
        ],
        "responses": {
          "200": {"description": "Return the cached object."},
          "404": {"description": "No cached item with the key was found."},
          "500": {"description": "Internal server error."}
        }
      },
      "put": {
        "tags": ["cache"],
        "summary": "Store a cached item by key.",
        "parameters": [
          {"name": "key", "in": "path", "required": true, "description": "Cache key.", "schema": {"type": "string"}}
        ],
        "requestBody": {
          "required": true,
          "content": {"text/plain": {"schema": {"type": "string"}}}
        },
        "responses": {
          "204": {"description": "No content. Successfully cached item."},
          "400": {"description": "Bad Request."},
          "500": {"description": "Internal server error."}
        }
      }
    },
    "/health": {"get": {"tags": ["health"], "summary": "Health probe.", "responses": {"200": {"description": "OK"}}}},
    "/health/live": {"get": {"tags": ["health"], "summary": "Liveness probe.", "responses": {"200": {"description": "OK"}}}},
    "/health/ready": {"get": {"tags": ["health"], "summary": "Readiness probe.", "responses": {"200": {"description": "OK"}}}},
    "/health/started": {"get": {"tags": ["health"], "summary": "Startup probe.", "responses": {"200": {"description": "OK"}}}}
  }
}`
