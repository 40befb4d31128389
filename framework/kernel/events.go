package kernel

import (
	"net/http"

	"github.com/km-arc/go-laravel-webprofiler/framework/events"
)

// Lifecycle event names.
const (
	EventRequest    = "kernel.request"
	EventController = "kernel.controller"
	EventResponse   = "kernel.response"
	EventException  = "kernel.exception"
	EventTerminate  = "kernel.terminate"
)

// RequestType tells main requests from sub-requests.
type RequestType int

const (
	MainRequest RequestType = iota
	SubRequest
)

// Event is the base of every kernel event.
type Event struct {
	events.BaseEvent
	Request *http.Request
	Type    RequestType
}

// IsMainRequest reports whether the event belongs to the main request.
func (e *Event) IsMainRequest() bool { return e.Type == MainRequest }

// RequestEvent is dispatched before routing. A listener may short-circuit
// the request by setting Response.
type RequestEvent struct {
	Event
	Response *Response
}

// ControllerEvent is dispatched once a controller has been resolved for the
// request, right before it runs.
type ControllerEvent struct {
	Event
	Controller string
	Route      string
}

// ResponseEvent is dispatched with the buffered response before it is sent.
// Listeners may modify it.
type ResponseEvent struct {
	Event
	Response *Response
}

// ExceptionEvent is dispatched when the handler panicked. A listener may
// set Response to replace the default error page.
type ExceptionEvent struct {
	Event
	Err      error
	Response *Response
}

// TerminateEvent is dispatched after the main response has been sent.
type TerminateEvent struct {
	Event
	Response *Response
}
