package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext(method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, nil)
	return c, w
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", services.NewValidationError("cooking_time", "must be at least 1"), http.StatusBadRequest, models.ErrValidationFailed},
		{"not found", fmt.Errorf("recipe: %w", services.ErrNotFound), http.StatusNotFound, models.ErrNotFound},
		{"conflict", fmt.Errorf("favorite: %w", services.ErrConflict), http.StatusConflict, models.ErrConflict},
		{"forbidden", fmt.Errorf("recipe: %w", services.ErrForbidden), http.StatusForbidden, models.ErrForbidden},
		{"credentials", services.ErrInvalidCredentials, http.StatusUnauthorized, models.ErrUnauthorized},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, models.ErrInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := testContext(http.MethodGet, "/")
			respondError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body models.APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotContains(t, body.Message, "disk on fire")
		})
	}

	t.Run("validation details carry the fields", func(t *testing.T) {
		c, w := testContext(http.MethodGet, "/")
		respondError(c, services.NewValidationError("cooking_time", "must be at least 1"))

		var body models.APIError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, map[string]interface{}{"cooking_time": "must be at least 1"}, body.Details)
	})
}

func TestNewPageLinks(t *testing.T) {
	page := services.Pagination{Page: 2, Limit: 2}

	c, _ := testContext(http.MethodGet, "/api/recipes?page=2&limit=2&tags=lunch")
	out := newPage(c, "http://foodgram.test", []int{3, 4}, 5, page)

	require.NotNil(t, out.Next)
	require.NotNil(t, out.Previous)
	assert.Equal(t, "http://foodgram.test/api/recipes?limit=2&page=3&tags=lunch", *out.Next)
	assert.Equal(t, "http://foodgram.test/api/recipes?limit=2&page=1&tags=lunch", *out.Previous)

	last := newPage(c, "http://foodgram.test", []int{5}, 5, services.Pagination{Page: 3, Limit: 2})
	assert.Nil(t, last.Next)

	empty := newPage[int](c, "", nil, 0, services.Pagination{Page: 1, Limit: 6})
	assert.NotNil(t, empty.Results)
	assert.Nil(t, empty.Next)
	assert.Nil(t, empty.Previous)
}

func TestRequestBaseURL(t *testing.T) {
	c, _ := testContext(http.MethodGet, "http://api.local:8080/api/recipes/1/get-link")
	assert.Equal(t, "http://api.local:8080", requestBaseURL(c, ""))
	assert.Equal(t, "https://foodgram.test", requestBaseURL(c, "https://foodgram.test"))

	c.Request.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://api.local:8080", requestBaseURL(c, ""))
}

func TestQueryParsing(t *testing.T) {
	c, w := testContext(http.MethodGet, "/api/recipes?page=x")
	_, ok := pagination(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, _ = testContext(http.MethodGet, "/api/recipes?page=0&limit=500")
	page, ok := pagination(c)
	require.True(t, ok)
	assert.Equal(t, services.Pagination{Page: 1, Limit: services.MaxPageSize}, page)

	c, _ = testContext(http.MethodGet, "/api/recipes?is_favorited=1")
	flag, ok := queryFlag(c, "is_favorited")
	require.True(t, ok)
	require.NotNil(t, flag)
	assert.True(t, *flag)
}
