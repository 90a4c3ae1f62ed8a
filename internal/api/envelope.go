package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/mission-control/internal/apperr"
)

type envelope struct {
	Data any `json:"data"`
	Meta any `json:"meta,omitempty"`
}

type listMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Data: data})
}

func respondMeta(c *gin.Context, status int, data, meta any) {
	c.JSON(status, envelope{Data: data, Meta: meta})
}

func respondList(c *gin.Context, data any, total, limit, offset int) {
	c.JSON(200, envelope{Data: data, Meta: listMeta{Total: total, Limit: limit, Offset: offset}})
}

// fail translates a service error into the error envelope. Internal details
// are logged, never returned.
func (s *Server) fail(c *gin.Context, err error) {
	e := apperr.From(err)
	if e.Code == "INTERNAL_ERROR" {
		s.log.Error("request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
	}
	c.JSON(e.Status, gin.H{"error": e})
}

func (s *Server) badBody(c *gin.Context) {
	s.fail(c, apperr.Validation("Invalid request body"))
}

// pageParams reads limit/offset query parameters, applying the same
// defaults and caps the services use so the list meta stays accurate.
func pageParams(c *gin.Context) (limit, offset int) {
	limit = intQuery(c, "limit", 20)
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = intQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
