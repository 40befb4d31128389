package kernel

import (
	"bytes"
	"net/http"
	"strings"
)

// Response buffers what a handler writes so kernel listeners can inspect
// and rewrite it before it reaches the client. It implements
// [http.ResponseWriter].
type Response struct {
	StatusCode int
	Body       bytes.Buffer

	header      http.Header
	wroteHeader bool
}

// NewResponse creates an empty 200 response.
func NewResponse() *Response {
	return &Response{StatusCode: http.StatusOK, header: make(http.Header)}
}

// NewResponseWithBody creates a response with the given status, content
// type and body.
func NewResponseWithBody(status int, contentType, body string) *Response {
	res := NewResponse()
	res.StatusCode = status
	res.header.Set("Content-Type", contentType)
	res.Body.WriteString(body)
	return res
}

func (r *Response) Header() http.Header { return r.header }

func (r *Response) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.Body.Write(b)
}

func (r *Response) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.StatusCode = status
}

// ContentType returns the Content-Type header, sniffing the body when the
// handler did not set one.
func (r *Response) ContentType() string {
	if ct := r.header.Get("Content-Type"); ct != "" {
		return ct
	}
	if r.Body.Len() == 0 {
		return ""
	}
	return http.DetectContentType(r.Body.Bytes())
}

// IsHTML reports whether the response carries an HTML document.
func (r *Response) IsHTML() bool {
	return strings.Contains(r.ContentType(), "html")
}

// IsRedirect reports whether the response is a 3xx with a Location.
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400 && r.header.Get("Location") != ""
}

// IsAttachment reports whether the response is served as a download.
func (r *Response) IsAttachment() bool {
	return strings.HasPrefix(strings.ToLower(r.header.Get("Content-Disposition")), "attachment")
}

// Send writes the buffered response to w.
func (r *Response) Send(w http.ResponseWriter) error {
	dst := w.Header()
	for k, v := range r.header {
		dst[k] = v
	}
	if dst.Get("Content-Type") == "" && r.Body.Len() > 0 {
		dst.Set("Content-Type", r.ContentType())
	}
	dst.Del("Content-Length")
	w.WriteHeader(r.StatusCode)
	_, err := w.Write(r.Body.Bytes())
	return err
}
