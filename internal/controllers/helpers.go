package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// respondError translates a service error into the API error body
func respondError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		details := make(map[string]interface{}, len(validationErr.Fields))
		for field, reason := range validationErr.Fields {
			details[field] = reason
		}
		c.JSON(http.StatusBadRequest, models.NewAPIError(models.ErrValidationFailed, "Request validation failed", details))
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, models.NewAPIError(models.ErrNotFound, err.Error()))
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, models.NewAPIError(models.ErrConflict, err.Error()))
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, models.NewAPIError(models.ErrForbidden, err.Error()))
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, models.NewAPIError(models.ErrUnauthorized, "Invalid email or password"))
	default:
		_ = c.Error(err)
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, models.NewAPIError(models.ErrInternalServer, "Internal server error"))
	}
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, models.NewAPIError(code, message))
}

// bindJSON decodes the body and answers 400 when it is not valid JSON
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, models.ErrBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// pathID parses a positive numeric path parameter
func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		badRequest(c, models.ErrBadRequest, fmt.Sprintf("Invalid %s: %q", name, raw))
		return 0, false
	}
	return uint(id), true
}

// queryInt parses an optional integer query parameter
func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, models.ErrBadRequest, fmt.Sprintf("Invalid %s: %q", name, raw))
		return 0, false
	}
	return v, true
}

// queryFlag parses an optional 0/1 (or true/false) query parameter
func queryFlag(c *gin.Context, name string) (*bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		badRequest(c, models.ErrBadRequest, fmt.Sprintf("Invalid %s: %q", name, raw))
		return nil, false
	}
	return &v, true
}

// pagination reads ?page and ?limit
func pagination(c *gin.Context) (services.Pagination, bool) {
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return services.Pagination{}, false
	}
	limit, ok := queryInt(c, "limit", services.DefaultPageSize)
	if !ok {
		return services.Pagination{}, false
	}
	return services.Pagination{Page: page, Limit: limit}.Normalize(), true
}

// newPage wraps results with the count and the links to the neighbouring pages
func newPage[T any](c *gin.Context, baseURL string, results []T, count int64, page services.Pagination) models.Page[T] {
	if results == nil {
		results = []T{}
	}
	out := models.Page[T]{Count: count, Results: results}

	link := func(n int) *string {
		u := url.URL{Path: c.Request.URL.Path}
		q := c.Request.URL.Query()
		q.Set("page", strconv.Itoa(n))
		q.Set("limit", strconv.Itoa(page.Limit))
		u.RawQuery = q.Encode()
		s := baseURL + u.String()
		return &s
	}

	if int64(page.Page*page.Limit) < count {
		out.Next = link(page.Page + 1)
	}
	if page.Page > 1 {
		out.Previous = link(page.Page - 1)
	}
	return out
}

// requestBaseURL returns the configured public URL, or the scheme and host of the request
func requestBaseURL(c *gin.Context, configured string) string {
	if configured != "" {
		return configured
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := c.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(forwarded, ",")[0]))
	}
	return scheme + "://" + c.Request.Host
}
