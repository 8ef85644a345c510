// ABOUTME: Server-Sent Events sink that writes turn frames to an HTTP response.
// ABOUTME: Each frame becomes "event: <type>" plus its JSON payload, flushed immediately.

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/2389/socrates-gateway/internal/turn"
)

// ErrSinkClosed is returned when writing to a closed sink.
var ErrSinkClosed = errors.New("sink closed")

// sseSink implements turn.Sink over an http.ResponseWriter.
type sseSink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	closed  bool
}

var _ turn.Sink = (*sseSink)(nil)

func newSSESink(w http.ResponseWriter, flusher http.Flusher) *sseSink {
	return &sseSink{w: w, flusher: flusher}
}

// formatSSEEvent formats an SSE event as a string with the standard format:
// event: <eventType>\ndata: <data>\n\n
func formatSSEEvent(eventType, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)
}

// start writes the SSE headers once.
func (s *sseSink) start() {
	if s.started {
		return
	}
	s.started = true

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

// Write implements turn.Sink.
func (s *sseSink) Write(f turn.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}

	data, err := json.Marshal(f.Payload())
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", f.Type(), err)
	}

	s.start()
	if _, err := fmt.Fprint(s.w, formatSSEEvent(string(f.Type()), string(data))); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close implements turn.Sink. The HTTP response ends when the handler
// returns.
func (s *sseSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	s.start()
	s.flusher.Flush()
	s.closed = true
	return nil
}
