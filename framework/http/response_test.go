package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
	"github.com/km-arc/go-laravel-webprofiler/framework/http/validation"
)

func newResponse() (*gohttp.Response, *httptest.ResponseRecorder) {
	rr := httptest.NewRecorder()
	return gohttp.NewResponse(rr), rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&m))
	return m
}

func TestResponse_JSON(t *testing.T) {
	res, rr := newResponse()
	res.JSON(http.StatusOK, map[string]any{"key": "val"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "val", decodeJSON(t, rr)["key"])
}

func TestResponse_Envelopes(t *testing.T) {
	res, rr := newResponse()
	res.Success(map[string]any{"id": 1})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"id": float64(1)}, decodeJSON(t, rr)["data"])

	res, rr = newResponse()
	res.Created(map[string]any{"name": "Alice"})
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, decodeJSON(t, rr), "data")

	res, rr = newResponse()
	res.NoContent()
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, rr.Body.Len())
	assert.Empty(t, rr.Header().Get("Content-Type"))
}

func TestResponse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		send    func(*gohttp.Response)
		status  int
		message string
	}{
		{"error", func(r *gohttp.Response) { r.Error(http.StatusBadRequest, "bad input") }, http.StatusBadRequest, "bad input"},
		{"unauthorized", func(r *gohttp.Response) { r.Unauthorized() }, http.StatusUnauthorized, "Unauthenticated."},
		{"unauthorized custom", func(r *gohttp.Response) { r.Unauthorized("Token expired.") }, http.StatusUnauthorized, "Token expired."},
		{"empty custom keeps default", func(r *gohttp.Response) { r.Forbidden("") }, http.StatusForbidden, "This action is unauthorized."},
		{"not found", func(r *gohttp.Response) { r.NotFound() }, http.StatusNotFound, "Not found."},
		{"server error", func(r *gohttp.Response) { r.ServerError() }, http.StatusInternalServerError, "Server Error."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, rr := newResponse()
			tt.send(res)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.message, decodeJSON(t, rr)["message"])
		})
	}
}

func TestResponse_ValidationError(t *testing.T) {
	v := validation.Make(map[string]string{"email": ""}, validation.Rules{"email": "required|email"})
	require.True(t, v.Fails())

	res, rr := newResponse()
	res.ValidationError(v.Errors())

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.JSONEq(t, `{"errors":{"email":["The email field is required."]}}`, rr.Body.String())
}

func TestResponse_HTMLAndText(t *testing.T) {
	res, rr := newResponse()
	res.HTML(http.StatusOK, "<p>hi</p>")
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Equal(t, "<p>hi</p>", rr.Body.String())

	res, rr = newResponse()
	res.Text(http.StatusNotFound, "Token not found")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
}

func TestResponse_Redirects(t *testing.T) {
	res, rr := newResponse()
	res.Redirect(http.StatusSeeOther, "/_profiler/abc123")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/_profiler/abc123", rr.Header().Get("Location"))

	res, rr = newResponse()
	res.RedirectTo("/dashboard")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Referer", "/previous")
	res, rr = newResponse()
	res.RedirectBack(r, "/home")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/previous", rr.Header().Get("Location"))

	res, rr = newResponse()
	res.RedirectBack(httptest.NewRequest(http.MethodGet, "/", nil), "/home")
	assert.Equal(t, "/home", rr.Header().Get("Location"))
}

func TestResponse_Raw(t *testing.T) {
	res, rr := newResponse()
	assert.Same(t, rr, res.Raw())
}
