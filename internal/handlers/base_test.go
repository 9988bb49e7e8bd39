package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"keyopolls/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func failWith(err error) (*httptest.ResponseRecorder, *gin.Context) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Fail(c, err)
	return w, c
}

func TestFail(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		body string
	}{
		{
			name: "validation keeps details",
			err:  utils.NewError(utils.KindValidation, "Invalid request body", "content is required"),
			code: http.StatusBadRequest,
			body: `{"error":{"code":400,"message":"Invalid request body","details":"content is required"}}`,
		},
		{
			name: "not found drops details",
			err:  utils.NewError(utils.KindNotFound, "Comment not found", "id=7"),
			code: http.StatusNotFound,
			body: `{"error":{"code":404,"message":"Comment not found"}}`,
		},
		{
			name: "forbidden drops details",
			err:  utils.NewError(utils.KindForbidden, "Not authorized", "owner=3"),
			code: http.StatusForbidden,
			body: `{"error":{"code":403,"message":"Not authorized"}}`,
		},
		{
			name: "unknown error is masked",
			err:  errors.New("pq: relation \"comments\" does not exist"),
			code: http.StatusInternalServerError,
			body: `{"error":{"code":500,"message":"Something went wrong"}}`,
		},
		{
			name: "wrapped cause is never rendered",
			err:  utils.Conflict("Already voted").WithCause(errors.New("unique constraint")),
			code: http.StatusConflict,
			body: `{"error":{"code":409,"message":"Already voted"}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, c := failWith(tt.err)
			assert.Equal(t, tt.code, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
			assert.True(t, c.IsAborted())
			require.Len(t, c.Errors, 1)
		})
	}
}

func TestContentRef(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "kind", Value: "poll"}, {Key: "id", Value: "12"}}

	ref, ok := contentRef(c)
	require.True(t, ok)
	assert.Equal(t, "poll", string(ref.Kind))
	assert.Equal(t, uint(12), ref.ID)

	for _, params := range []gin.Params{
		{{Key: "kind", Value: "widget"}, {Key: "id", Value: "1"}},
		{{Key: "kind", Value: "poll"}, {Key: "id", Value: "abc"}},
	} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = params
		_, ok := contentRef(c)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}
