package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/wzyjerry/llm-arena/internal/model"
)

const maxFrameSize = 4 << 20

// Decoder reads frames written by Writer. Input may arrive split at any
// byte; a frame is only decoded once its terminating blank line is seen.
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

// NewDecoder reads frames from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxFrameSize)
	sc.Split(splitFrames)
	return &Decoder{scanner: sc}
}

// splitFrames yields records separated by a blank line, accepting both
// "\n\n" and "\r\n\r\n".
func splitFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	lf := bytes.Index(data, []byte("\n\n"))
	crlf := bytes.Index(data, []byte("\r\n\r\n"))
	switch {
	case crlf >= 0 && (lf < 0 || crlf < lf):
		return crlf + 4, data[:crlf], nil
	case lf >= 0:
		return lf + 2, data[:lf], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Next returns the data payload of the next frame. It returns io.EOF after
// the end-of-stream sentinel or when the input ends.
func (d *Decoder) Next() ([]byte, error) {
	for !d.done && d.scanner.Scan() {
		payload, ok := framePayload(d.scanner.Text())
		if !ok {
			continue
		}
		if payload == model.DoneSentinel {
			d.done = true
			break
		}
		return []byte(payload), nil
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// NextEvent decodes the next frame as an event. A frame that is not valid
// JSON is returned as a *FrameError so callers can skip it and continue.
func (d *Decoder) NextEvent() (model.StreamEvent, error) {
	var e model.StreamEvent
	payload, err := d.Next()
	if err != nil {
		return e, err
	}
	if err := json.Unmarshal(payload, &e); err != nil {
		return e, &FrameError{Payload: string(payload), Err: err}
	}
	return e, nil
}

// framePayload joins the data lines of one record.
func framePayload(record string) (string, bool) {
	var parts []string
	for _, line := range strings.Split(record, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		parts = append(parts, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

// FrameError is a frame whose payload could not be decoded.
type FrameError struct {
	Payload string
	Err     error
}

func (e *FrameError) Error() string {
	return "malformed frame: " + e.Err.Error()
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
