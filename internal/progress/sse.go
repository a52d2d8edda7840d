package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// SSEWriter serializes events as server-sent events:
//
//	event: <name>
//	data: <json>
//
// Each event is flushed immediately when the writer supports it.
type SSEWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	err     error
}

// NewSSEWriter prepares w for streaming and writes the response headers.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	s := &SSEWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
		f.Flush()
	}
	return s
}

// NewStreamWriter writes events to an arbitrary writer without HTTP headers.
func NewStreamWriter(w io.Writer) *SSEWriter {
	s := &SSEWriter{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

// Emit writes evt. After the first write failure all later events are
// dropped and the error is available from Err.
func (s *SSEWriter) Emit(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	if err := s.write(evt); err != nil {
		s.err = err
	}
}

func (s *SSEWriter) write(evt Event) error {
	payload, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", evt.Name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", evt.Name, payload); err != nil {
		return fmt.Errorf("write %s event: %w", evt.Name, err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// Err reports the first write failure, if any.
func (s *SSEWriter) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
