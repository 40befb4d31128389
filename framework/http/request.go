package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// maxMemory bounds the multipart form parts kept in memory.
const maxMemory = 32 << 20

// ErrEmptyBody is returned by Bind for a JSON request without a body.
var ErrEmptyBody = errors.New("empty request body")

// Request wraps *http.Request with Laravel-style helpers.
type Request struct {
	raw *http.Request
}

// NewRequest wraps a standard *http.Request.
func NewRequest(r *http.Request) *Request {
	return &Request{raw: r}
}

// Raw returns the underlying *http.Request.
func (req *Request) Raw() *http.Request { return req.raw }

// ── Binding ──────────────────────────────────────────────────────────────────

// Bind decodes the request body into v. JSON bodies decode directly;
// urlencoded and multipart forms are flattened (see All) and decoded through
// the same `json:"name"` tags, so one struct serves both.
func (req *Request) Bind(v any) error {
	if req.isJSONBody() {
		if req.raw.Body == nil || req.raw.Body == http.NoBody {
			return ErrEmptyBody
		}
		defer req.raw.Body.Close()
		err := json.NewDecoder(req.raw.Body).Decode(v)
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}

	values, err := req.form()
	if err != nil {
		return fmt.Errorf("parse form: %w", err)
	}
	b, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// form parses the body as a form and returns the posted values, with
// repeated keys kept as slices.
func (req *Request) form() (map[string]any, error) {
	var posted map[string][]string
	if strings.HasPrefix(req.ContentType(), "multipart/form-data") {
		if err := req.raw.ParseMultipartForm(maxMemory); err != nil {
			return nil, err
		}
		posted = req.raw.MultipartForm.Value
	} else {
		if err := req.raw.ParseForm(); err != nil {
			return nil, err
		}
		posted = req.raw.PostForm
	}

	out := make(map[string]any, len(posted))
	for k, vals := range posted {
		switch len(vals) {
		case 0:
		case 1:
			out[k] = vals[0]
		default:
			out[k] = vals
		}
	}
	return out, nil
}

// ── Input helpers ────────────────────────────────────────────────────────────

// Input returns a value from the body or the query string, body first.
func (req *Request) Input(key string, fallback ...string) string {
	_ = req.raw.ParseForm()
	return orDefault(req.raw.FormValue(key), fallback)
}

// Query returns a query-string value.
func (req *Request) Query(key string, fallback ...string) string {
	return orDefault(req.raw.URL.Query().Get(key), fallback)
}

// QueryInt returns a query parameter as an int, or fallback when it is
// missing or not a number.
func (req *Request) QueryInt(key string, fallback int) int {
	i, err := strconv.Atoi(req.raw.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return i
}

// All flattens query and body input to the first value of each key, the
// shape validation.Make and form.Form.Submit take.
func (req *Request) All() map[string]string {
	_ = req.raw.ParseForm()
	out := make(map[string]string, len(req.raw.Form))
	for k, v := range req.raw.Form {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// Has reports whether key is present and non-empty.
func (req *Request) Has(key string) bool { return req.Input(key) != "" }

// RouteParam returns a URL route parameter (chi).
func (req *Request) RouteParam(key string) string {
	return chi.URLParam(req.raw, key)
}

// ── Headers ──────────────────────────────────────────────────────────────────

// Header returns a request header value.
func (req *Request) Header(key string) string { return req.raw.Header.Get(key) }

// ContentType returns the Content-Type header value.
func (req *Request) ContentType() string { return req.raw.Header.Get("Content-Type") }

// BearerToken extracts the token from "Authorization: Bearer <token>".
func (req *Request) BearerToken() string {
	token, ok := strings.CutPrefix(req.raw.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return token
}

// IsJSON reports whether the client sent or accepts JSON.
func (req *Request) IsJSON() bool {
	return req.isJSONBody() || strings.Contains(req.raw.Header.Get("Accept"), "application/json")
}

func (req *Request) isJSONBody() bool {
	return strings.Contains(req.ContentType(), "application/json")
}

// IsXHR reports whether the request was sent by XMLHttpRequest/fetch with
// the conventional X-Requested-With header.
func (req *Request) IsXHR() bool {
	return req.raw.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

// ── Client / URL ─────────────────────────────────────────────────────────────

// IP returns the client address without its port. Behind chi's RealIP
// middleware RemoteAddr already holds the forwarded address.
func (req *Request) IP() string {
	host, _, err := net.SplitHostPort(req.raw.RemoteAddr)
	if err != nil {
		return req.raw.RemoteAddr
	}
	return host
}

// Method returns the HTTP method.
func (req *Request) Method() string { return req.raw.Method }

// Path returns the URL path.
func (req *Request) Path() string { return req.raw.URL.Path }

// FullURL returns scheme, host, path and query as the client requested them.
func (req *Request) FullURL() string {
	scheme := "http"
	if req.raw.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + req.raw.Host + req.raw.URL.RequestURI()
}

// ── File uploads ─────────────────────────────────────────────────────────────

// File returns the first file uploaded under key.
func (req *Request) File(key string) (*multipart.FileHeader, error) {
	files, err := req.Files(key)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, http.ErrMissingFile
	}
	return files[0], nil
}

// Files returns every file uploaded under key.
func (req *Request) Files(key string) ([]*multipart.FileHeader, error) {
	if err := req.raw.ParseMultipartForm(maxMemory); err != nil {
		return nil, err
	}
	return req.raw.MultipartForm.File[key], nil
}

func orDefault(v string, fallback []string) string {
	if v == "" && len(fallback) > 0 {
		return fallback[0]
	}
	return v
}
