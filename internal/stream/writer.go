// Package stream frames evaluation events as server-sent events.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"syscall"

	"github.com/wzyjerry/llm-arena/internal/model"
)

// SetHeaders prepares an HTTP response for an event stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Writer serializes events from many goroutines onto one stream. Each
// event is written and flushed whole, so frames never interleave.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	closed bool
	done   bool
}

// NewWriter wraps w. If w implements http.Flusher every frame is flushed,
// and if it implements io.Closer Close closes it.
func NewWriter(w io.Writer) *Writer {
	sw := &Writer{w: w}
	if c, ok := w.(io.Closer); ok {
		sw.closer = c
	}
	return sw
}

// Publish writes one event. After Close, or once the consumer has gone
// away, it does nothing and returns nil.
func (s *Writer) Publish(e model.StreamEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return s.writeFrame(payload)
}

// Done writes the end-of-stream sentinel once.
func (s *Writer) Done() error {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return nil
	}
	s.done = true
	s.mu.Unlock()
	return s.writeFrame([]byte(model.DoneSentinel))
}

func (s *Writer) writeFrame(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')

	if _, err := s.w.Write(frame); err != nil {
		if IsDisconnect(err) {
			s.closed = true
			return nil
		}
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// Close ends the stream. It is safe to call more than once.
func (s *Writer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer == nil {
		return nil
	}
	if err := s.closer.Close(); err != nil && !IsDisconnect(err) {
		return err
	}
	return nil
}

// Closed reports whether the stream no longer accepts events.
func (s *Writer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// IsDisconnect reports whether err means the consumer went away.
func IsDisconnect(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, http.ErrHandlerTimeout) ||
		errors.Is(err, context.Canceled)
}
