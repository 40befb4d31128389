package kernel

import (
	"net/http"
	"sync"
)

// RequestStack tracks the requests the kernel is currently handling: the
// main request at the bottom, sub-requests above it.
type RequestStack struct {
	mu       sync.Mutex
	requests []*http.Request
}

// NewRequestStack creates an empty stack.
func NewRequestStack() *RequestStack { return &RequestStack{} }

// Push adds r on top of the stack.
func (s *RequestStack) Push(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r)
}

// Pop removes and returns the top request, or nil when empty.
func (s *RequestStack) Pop() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	r := s.requests[len(s.requests)-1]
	s.requests = s.requests[:len(s.requests)-1]
	return r
}

// Current returns the top request, or nil.
func (s *RequestStack) Current() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

// Main returns the bottom request, or nil.
func (s *RequestStack) Main() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[0]
}

// Parent returns the request below the current one, or nil.
func (s *RequestStack) Parent() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) < 2 {
		return nil
	}
	return s.requests[len(s.requests)-2]
}
