package stream

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wzyjerry/llm-arena/internal/model"
)

func strPtr(s string) *string { return &s }

type failingWriter struct {
	err    error
	closes int
}

func (f *failingWriter) Write([]byte) (int, error) { return 0, f.err }
func (f *failingWriter) Close() error {
	f.closes++
	return nil
}

// chunkReader returns at most n bytes per Read.
type chunkReader struct {
	r io.Reader
	n int
}

func (c chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.r.Read(p)
}

func TestWriterFraming(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec.Header())
	w := NewWriter(rec)

	require.NoError(t, w.Publish(model.StreamEvent{Model: "m", Response: "", Delta: strPtr("")}))
	require.NoError(t, w.Done())
	require.NoError(t, w.Done())
	require.NoError(t, w.Close())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "data: {\"model\":\"m\",\"response\":\"\",\"delta\":\"\"}\n\ndata: [DONE]\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestWriterCloseIdempotent(t *testing.T) {
	fw := &failingWriter{}
	w := NewWriter(fw)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 1, fw.closes)
	assert.True(t, w.Closed())

	assert.NoError(t, w.Publish(model.StreamEvent{Model: "m"}), "publish after close is a no-op")
}

func TestWriterSwallowsDisconnect(t *testing.T) {
	fw := &failingWriter{err: fmt.Errorf("write tcp: %w", syscall.EPIPE)}
	w := NewWriter(fw)

	assert.NoError(t, w.Publish(model.StreamEvent{Model: "m"}))
	assert.True(t, w.Closed())
}

func TestWriterReturnsIOError(t *testing.T) {
	boom := errors.New("disk full")
	w := NewWriter(&failingWriter{err: boom})

	assert.ErrorIs(t, w.Publish(model.StreamEvent{Model: "m"}), boom)
	assert.False(t, w.Closed())
}

func TestWriterConcurrentPublish(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	const writers, events = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < events; j++ {
				text := strings.Repeat(fmt.Sprint(i), j)
				_ = w.Publish(model.StreamEvent{Model: fmt.Sprintf("m%d", i), Response: text, Delta: strPtr(text)})
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Done())

	d := NewDecoder(&buf)
	count := 0
	for {
		e, err := d.NextEvent()
		if err == io.EOF {
			break
		}
		require.NoError(t, err, "every frame decodes, so none interleaved")
		assert.Equal(t, *e.Delta, e.Response)
		count++
	}
	assert.Equal(t, writers*events, count)
}

func TestDecoderSplitFrames(t *testing.T) {
	input := "data: {\"model\":\"a\",\"response\":\"x\"}\n\n" +
		": comment\n\n" +
		"data: {\"model\":\"b\",\"response\":\"y\"}\r\n\r\n" +
		"data: [DONE]\n\n" +
		"data: {\"model\":\"late\",\"response\":\"\"}\n\n"

	d := NewDecoder(chunkReader{r: strings.NewReader(input), n: 3})

	e, err := d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, "a", e.Model)

	e, err = d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, "b", e.Model)

	_, err = d.NextEvent()
	assert.Equal(t, io.EOF, err, "sentinel ends the stream")
}

func TestDecoderMalformedFrame(t *testing.T) {
	input := "data: {not json}\n\ndata: {\"model\":\"a\",\"response\":\"ok\"}\n\n"
	d := NewDecoder(strings.NewReader(input))

	_, err := d.NextEvent()
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "{not json}", fe.Payload)

	e, err := d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, "ok", e.Response)

	_, err = d.NextEvent()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderUnterminatedTail(t *testing.T) {
	d := NewDecoder(strings.NewReader("data: {\"model\":\"a\",\"response\":\"r\"}"))
	e, err := d.NextEvent()
	require.NoError(t, err)
	assert.Equal(t, "a", e.Model)
}

func TestIsDisconnect(t *testing.T) {
	assert.True(t, IsDisconnect(fmt.Errorf("wrap: %w", syscall.ECONNRESET)))
	assert.True(t, IsDisconnect(io.ErrClosedPipe))
	assert.False(t, IsDisconnect(errors.New("other")))
}
