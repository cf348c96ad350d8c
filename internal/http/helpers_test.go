package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/mrlokans/mimeroute/internal/batch"
	"github.com/mrlokans/mimeroute/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseIndexParam_Valid(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "index", Value: "3"}}

	n, ok := parseIndexParam(c, "index")

	assert.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseIndexParam_Invalid(t *testing.T) {
	for _, value := range []string{"abc", "-1", ""} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "index", Value: value}}

		_, ok := parseIndexParam(c, "index")

		assert.False(t, ok, value)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid index")
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"?limit=10&offset=20", 10, 20},
		{"?limit=1000", 200, 0},
		{"?limit=-5&offset=-1", 50, 0},
		{"?limit=abc", 50, 0},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)

		limit, offset := parsePagination(c, 50, 200)
		assert.Equal(t, tt.wantLimit, limit, tt.query)
		assert.Equal(t, tt.wantOffset, offset, tt.query)
	}
}

func TestRespondConversionError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid argument", fmt.Errorf("%w: items: cannot be blank", batch.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{"backend error", &storage.BackendError{Op: "about", StatusCode: 403, Body: "denied"}, http.StatusBadGateway, "backend_error"},
		{"other", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondConversionError(c, zap.NewNop(), tt.err)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
			}
		})
	}
}
