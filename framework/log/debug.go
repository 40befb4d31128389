package log

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const defaultBufferSize = 500

// Record is a captured log entry.
type Record struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// DebugLogger exposes the records captured since the last Clear.
type DebugLogger interface {
	Records() []Record
	Clear()
}

// DebugBuffer keeps the latest records in a bounded ring. When full, the
// oldest record is dropped. Safe for concurrent use.
type DebugBuffer struct {
	mu      sync.Mutex
	records []Record
	size    int
}

// NewDebugBuffer creates a buffer holding at most size records.
// Values less than 1 use the default of 500.
func NewDebugBuffer(size int) *DebugBuffer {
	if size < 1 {
		size = defaultBufferSize
	}
	return &DebugBuffer{size: size}
}

func (b *DebugBuffer) add(r Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) == b.size {
		b.records = slices.Delete(b.records, 0, 1)
	}
	b.records = append(b.records, r)
}

// Records returns a copy of the buffered records, oldest first.
func (b *DebugBuffer) Records() []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.records)
}

// Clear drops all buffered records.
func (b *DebugBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = nil
}

// DebugHandler forwards to a wrapped [slog.Handler] and copies every record
// into a DebugBuffer, regardless of the wrapped handler's level.
type DebugHandler struct {
	next   slog.Handler
	buffer *DebugBuffer
	attrs  []slog.Attr // keys already qualified by their group
	group  string
}

// NewDebugHandler wraps next. A nil next only buffers.
func NewDebugHandler(next slog.Handler, buffer *DebugBuffer) *DebugHandler {
	return &DebugHandler{next: next, buffer: buffer}
}

// Records implements DebugLogger.
func (h *DebugHandler) Records() []Record { return h.buffer.Records() }

// Clear implements DebugLogger.
func (h *DebugHandler) Clear() { h.buffer.Clear() }

func (h *DebugHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *DebugHandler) Handle(ctx context.Context, r slog.Record) error {
	rec := Record{Time: r.Time, Level: r.Level.String(), Message: r.Message}
	if len(h.attrs) > 0 || r.NumAttrs() > 0 {
		rec.Attrs = make(map[string]any, len(h.attrs)+r.NumAttrs())
		for _, a := range h.attrs {
			rec.Attrs[a.Key] = a.Value.Resolve().Any()
		}
		r.Attrs(func(a slog.Attr) bool {
			rec.Attrs[h.key(a.Key)] = a.Value.Resolve().Any()
			return true
		})
	}
	h.buffer.add(rec)

	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *DebugHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, slog.Attr{Key: h.key(a.Key), Value: a.Value})
	}
	if h.next != nil {
		clone.next = h.next.WithAttrs(attrs)
	}
	return &clone
}

func (h *DebugHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.group = h.key(name)
	if h.next != nil {
		clone.next = h.next.WithGroup(name)
	}
	return &clone
}

func (h *DebugHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

// DebugLoggerOf returns the DebugLogger behind logger, if any.
func DebugLoggerOf(logger *slog.Logger) (DebugLogger, bool) {
	if logger == nil {
		return nil, false
	}
	dl, ok := logger.Handler().(DebugLogger)
	return dl, ok
}
