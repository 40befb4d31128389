// Package kernel turns the framework's router into an event-driven HTTP
// kernel: every request goes through kernel.request → kernel.controller →
// kernel.response (or kernel.exception) → kernel.terminate, with the response
// buffered in between so listeners can rewrite it.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/km-arc/go-laravel-webprofiler/framework/events"
)

type ctxKey int

const (
	startTimeKey ctxKey = iota
	requestTypeKey
)

// StartTime returns when the kernel started handling r.
func StartTime(r *http.Request) (time.Time, bool) {
	t, ok := r.Context().Value(startTimeKey).(time.Time)
	return t, ok
}

// RequestTypeOf returns the type of r; requests the kernel never saw are
// main requests.
func RequestTypeOf(r *http.Request) RequestType {
	if t, ok := r.Context().Value(requestTypeKey).(RequestType); ok {
		return t
	}
	return MainRequest
}

// HTTPError is an error carrying a status code.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string { return fmt.Sprintf("%d %s", e.Status, e.Message) }

// PanicError wraps a value recovered from a handler panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// StatusCode returns the status an error should be reported with.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return http.StatusInternalServerError
}

// Kernel dispatches the request lifecycle events around a handler.
type Kernel struct {
	dispatcher events.Dispatcher
	stack      *RequestStack
	logger     *slog.Logger
}

// New creates a Kernel. logger may be nil.
func New(dispatcher events.Dispatcher, stack *RequestStack, logger *slog.Logger) *Kernel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kernel{dispatcher: dispatcher, stack: stack, logger: logger}
}

// Dispatcher returns the dispatcher lifecycle events are sent to.
func (k *Kernel) Dispatcher() events.Dispatcher { return k.dispatcher }

// Middleware handles every request passing through it as a main request.
func (k *Kernel) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		k.Handle(w, r, next, MainRequest)
	})
}

// SubRequest renders h for r as a sub-request (fragments, forwards).
func (k *Kernel) SubRequest(w http.ResponseWriter, r *http.Request, h http.Handler) {
	k.Handle(w, r, h, SubRequest)
}

// Handle runs next for r, dispatching the lifecycle events.
func (k *Kernel) Handle(w http.ResponseWriter, r *http.Request, next http.Handler, typ RequestType) {
	ctx := context.WithValue(r.Context(), requestTypeKey, typ)
	if _, ok := ctx.Value(startTimeKey).(time.Time); !ok || typ == MainRequest {
		ctx = context.WithValue(ctx, startTimeKey, time.Now())
	}
	// Give the router a route context we can read back after routing.
	ctx = context.WithValue(ctx, chi.RouteCtxKey, chi.NewRouteContext())
	r = r.WithContext(ctx)

	k.stack.Push(r)
	defer k.stack.Pop()

	base := Event{Request: r, Type: typ}

	res := k.handleRaw(r, next, base)

	respEvt := &ResponseEvent{Event: base, Response: res}
	k.dispatcher.Dispatch(EventResponse, respEvt)
	res = respEvt.Response

	if err := res.Send(w); err != nil {
		k.logger.Warn("sending response failed", "error", err, "path", r.URL.Path)
	}

	if typ == MainRequest {
		k.dispatcher.Dispatch(EventTerminate, &TerminateEvent{Event: base, Response: res})
	}
}

func (k *Kernel) handleRaw(r *http.Request, next http.Handler, base Event) *Response {
	reqEvt := &RequestEvent{Event: base}
	k.dispatcher.Dispatch(EventRequest, reqEvt)
	if reqEvt.Response != nil {
		return reqEvt.Response
	}

	res := NewResponse()
	err := serve(res, r, next)
	if err == nil {
		return res
	}

	k.logger.Error("uncaught error", "error", err, "path", r.URL.Path)

	exEvt := &ExceptionEvent{Event: base, Err: err}
	k.dispatcher.Dispatch(EventException, exEvt)
	if exEvt.Response != nil {
		return exEvt.Response
	}

	status := StatusCode(err)
	return NewResponseWithBody(status, "text/plain; charset=utf-8", http.StatusText(status))
}

func serve(res *Response, r *http.Request, next http.Handler) (err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		if e, ok := rec.(*HTTPError); ok {
			err = e
			return
		}
		err = &PanicError{Value: rec, Stack: debug.Stack()}
	}()
	next.ServeHTTP(res, r)
	return nil
}

// Throw aborts the current handler with err; the kernel turns it into a
// kernel.exception event.
func Throw(err error) {
	panic(err)
}
