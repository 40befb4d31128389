package http_test

import (
	"bytes"
	"context"
	"crypto/tls"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gohttp "github.com/km-arc/go-laravel-webprofiler/framework/http"
)

func jsonRequest(body string) *gohttp.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return gohttp.NewRequest(r)
}

func formRequest(target string, values url.Values) *gohttp.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return gohttp.NewRequest(r)
}

func getRequest(target string) *gohttp.Request {
	return gohttp.NewRequest(httptest.NewRequest(http.MethodGet, target, nil))
}

type subscriber struct {
	Email string   `json:"email"`
	Tags  []string `json:"tags"`
}

func TestRequest_Bind(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var s subscriber
		require.NoError(t, jsonRequest(`{"email":"ada@example.com","tags":["a"]}`).Bind(&s))
		assert.Equal(t, subscriber{Email: "ada@example.com", Tags: []string{"a"}}, s)
	})

	t.Run("empty json body", func(t *testing.T) {
		var v any
		assert.ErrorIs(t, jsonRequest("").Bind(&v), gohttp.ErrEmptyBody)
	})

	t.Run("invalid json", func(t *testing.T) {
		var v map[string]any
		assert.Error(t, jsonRequest(`{bad json}`).Bind(&v))
	})

	t.Run("urlencoded form with repeated key", func(t *testing.T) {
		var s subscriber
		req := formRequest("/", url.Values{"email": {"bob@example.com"}, "tags": {"x", "y"}})
		require.NoError(t, req.Bind(&s))
		assert.Equal(t, subscriber{Email: "bob@example.com", Tags: []string{"x", "y"}}, s)
	})

	t.Run("multipart form", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		require.NoError(t, w.WriteField("email", "eve@example.com"))
		require.NoError(t, w.Close())
		r := httptest.NewRequest(http.MethodPost, "/", &buf)
		r.Header.Set("Content-Type", w.FormDataContentType())

		var s subscriber
		require.NoError(t, gohttp.NewRequest(r).Bind(&s))
		assert.Equal(t, "eve@example.com", s.Email)
	})
}

func TestRequest_Input(t *testing.T) {
	req := formRequest("/?page=2&name=query", url.Values{"name": {"body"}, "empty": {""}})

	assert.Equal(t, "body", req.Input("name"), "body wins over query")
	assert.Equal(t, "2", req.Input("page"))
	assert.Equal(t, "default", req.Input("missing", "default"))
	assert.Equal(t, map[string]string{"name": "body", "page": "2", "empty": ""}, req.All())

	assert.True(t, req.Has("name"))
	assert.False(t, req.Has("empty"))
	assert.False(t, req.Has("missing"))
}

func TestRequest_Query(t *testing.T) {
	req := getRequest("/?limit=10&status=abc")

	assert.Equal(t, "10", req.Query("limit"))
	assert.Equal(t, "1", req.Query("missing", "1"))
	assert.Equal(t, 10, req.QueryInt("limit", 50))
	assert.Equal(t, 50, req.QueryInt("status", 50), "not a number")
	assert.Equal(t, 50, req.QueryInt("missing", 50))
}

func TestRequest_RouteParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/_profiler/abc123", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("token", "abc123")
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	assert.Equal(t, "abc123", gohttp.NewRequest(r).RouteParam("token"))
}

func TestRequest_Headers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Custom", "value123")
	r.Header.Set("Authorization", "Bearer my-secret-token")
	r.Header.Set("X-Requested-With", "XMLHttpRequest")
	req := gohttp.NewRequest(r)

	assert.Equal(t, "value123", req.Header("X-Custom"))
	assert.Equal(t, "my-secret-token", req.BearerToken())
	assert.True(t, req.IsXHR())
	assert.False(t, req.IsJSON())

	r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	assert.Empty(t, req.BearerToken())
	assert.Empty(t, getRequest("/").BearerToken())
	assert.False(t, getRequest("/").IsXHR())
}

func TestRequest_IsJSON(t *testing.T) {
	assert.True(t, jsonRequest(`{}`).IsJSON())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Accept", "application/json")
	assert.True(t, gohttp.NewRequest(r).IsJSON())
}

func TestRequest_ClientAndURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodDelete, "http://example.com/api/v1/users?x=1", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	req := gohttp.NewRequest(r)

	assert.Equal(t, http.MethodDelete, req.Method())
	assert.Equal(t, "/api/v1/users", req.Path())
	assert.Equal(t, "10.0.0.7", req.IP())
	assert.Equal(t, "http://example.com/api/v1/users?x=1", req.FullURL())

	r.RemoteAddr = "10.0.0.8"
	assert.Equal(t, "10.0.0.8", req.IP(), "no port")

	r.TLS = &tls.ConnectionState{}
	assert.Equal(t, "https://example.com/api/v1/users?x=1", req.FullURL())
}

func TestRequest_Files(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range []string{"a.png", "b.png"} {
		fw, err := w.CreateFormFile("avatar", name)
		require.NoError(t, err)
		_, _ = fw.Write([]byte("fake-image-data"))
	}
	require.NoError(t, w.Close())

	r := httptest.NewRequest(http.MethodPost, "/", &buf)
	r.Header.Set("Content-Type", w.FormDataContentType())
	req := gohttp.NewRequest(r)

	fh, err := req.File("avatar")
	require.NoError(t, err)
	assert.Equal(t, "a.png", fh.Filename)

	files, err := req.Files("avatar")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	_, err = req.File("cover")
	assert.ErrorIs(t, err, http.ErrMissingFile)
}
