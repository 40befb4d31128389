package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/km-arc/go-laravel-webprofiler/framework/http/validation"
)

// Response wraps http.ResponseWriter with Laravel-style helpers. Each helper
// writes the status line, so call at most one per request.
type Response struct {
	w http.ResponseWriter
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// Raw returns the underlying ResponseWriter.
func (res *Response) Raw() http.ResponseWriter { return res.w }

func (res *Response) send(status int, contentType string, body func(io.Writer)) {
	if contentType != "" {
		res.w.Header().Set("Content-Type", contentType)
	}
	res.w.WriteHeader(status)
	if body != nil {
		body(res.w)
	}
}

// ── JSON ─────────────────────────────────────────────────────────────────────

// JSON sends data encoded as JSON.
//
//	res.JSON(http.StatusOK, map[string]any{"message": "ok"})
func (res *Response) JSON(status int, data any) {
	res.send(status, "application/json", func(w io.Writer) {
		_ = json.NewEncoder(w).Encode(data)
	})
}

// Success sends 200 {"data": v}.
func (res *Response) Success(v any) { res.JSON(http.StatusOK, envelope{"data": v}) }

// Created sends 201 {"data": v}.
func (res *Response) Created(v any) { res.JSON(http.StatusCreated, envelope{"data": v}) }

// NoContent sends 204 with no body.
func (res *Response) NoContent() { res.send(http.StatusNoContent, "", nil) }

// Error sends {"message": message} with status.
func (res *Response) Error(status int, message string) {
	res.JSON(status, envelope{"message": message})
}

// defaultMessages are the messages of the shorthand error helpers when the
// caller gives none.
var defaultMessages = map[int]string{
	http.StatusUnauthorized:        "Unauthenticated.",
	http.StatusForbidden:           "This action is unauthorized.",
	http.StatusNotFound:            "Not found.",
	http.StatusInternalServerError: "Server Error.",
}

func (res *Response) abort(status int, message []string) {
	msg := defaultMessages[status]
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	res.Error(status, msg)
}

// Unauthorized sends 401.
func (res *Response) Unauthorized(message ...string) { res.abort(http.StatusUnauthorized, message) }

// Forbidden sends 403.
func (res *Response) Forbidden(message ...string) { res.abort(http.StatusForbidden, message) }

// NotFound sends 404.
func (res *Response) NotFound(message ...string) { res.abort(http.StatusNotFound, message) }

// ServerError sends 500.
func (res *Response) ServerError(message ...string) {
	res.abort(http.StatusInternalServerError, message)
}

// ValidationError sends 422 with the error bag:
// {"errors": {"field": ["message"]}}.
func (res *Response) ValidationError(errors *validation.Errors) {
	res.JSON(http.StatusUnprocessableEntity, errors)
}

// ── HTML / text ──────────────────────────────────────────────────────────────

// HTML sends an HTML body.
func (res *Response) HTML(status int, body string) {
	res.send(status, "text/html; charset=utf-8", func(w io.Writer) { _, _ = io.WriteString(w, body) })
}

// Text sends a plain text body.
func (res *Response) Text(status int, body string) {
	res.send(status, "text/plain; charset=utf-8", func(w io.Writer) { _, _ = io.WriteString(w, body) })
}

// ── Redirects ────────────────────────────────────────────────────────────────

// Redirect sends status with a Location header. The URL is used as given.
//
//	res.Redirect(http.StatusSeeOther, "/_profiler/empty/search/results")
func (res *Response) Redirect(status int, url string) {
	res.w.Header().Set("Location", url)
	res.send(status, "", nil)
}

// RedirectTo performs a 302 redirect.
func (res *Response) RedirectTo(url string) { res.Redirect(http.StatusFound, url) }

// RedirectBack redirects to the Referer, or to fallback without one.
func (res *Response) RedirectBack(r *http.Request, fallback string) {
	if ref := r.Referer(); ref != "" {
		res.RedirectTo(ref)
		return
	}
	res.RedirectTo(fallback)
}

type envelope map[string]any
