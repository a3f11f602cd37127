package api

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"
)

// SSEWriter emits generation events as server-sent events. Each text
// fragment becomes a generation.delta event; the run ends with either
// generation.done or generation.failed.
type SSEWriter struct {
	w       io.Writer
	flusher func()
	seq     int
}

func NewSSEWriter(c *echo.Context) (*SSEWriter, error) {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")

	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}

	return &SSEWriter{
		w:       res,
		flusher: flusher.Flush,
		seq:     1,
	}, nil
}

func (s *SSEWriter) Delta(text string) error {
	return s.send(streamEvent{
		Type:           "generation.delta",
		Delta:          text,
		SequenceNumber: s.seq,
	})
}

func (s *SSEWriter) Done(resp GenerateResponse) error {
	return s.send(streamEvent{
		Type:           "generation.done",
		Response:       &resp,
		SequenceNumber: s.seq,
	})
}

func (s *SSEWriter) Failed(err error) error {
	return s.send(streamEvent{
		Type:           "generation.failed",
		Error:          err.Error(),
		SequenceNumber: s.seq,
	})
}

func (s *SSEWriter) send(event streamEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.flusher()
	s.seq++
	return nil
}
