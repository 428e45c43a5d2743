package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zulandar/pyassist/internal/apperr"
)

// ErrStreamClosed is returned when the event stream ends before a finished
// or error event.
var ErrStreamClosed = errors.New("backend: stream closed before completion")

// AskStream asks question over the /ask_stream event stream and calls fn for
// every decoded event, in order. Chunks are cumulative: each one holds the
// whole answer so far. AskStream returns after fn has seen the first
// terminal event, when fn returns an error, or when ctx is cancelled.
func (c *Client) AskStream(ctx context.Context, question string, fn func(StreamEvent) error) error {
	u := c.baseURL + "/ask_stream?" + url.Values{"question": {question}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return apperr.Transport("build request", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Transport("network error", err)
	}
	defer resp.Body.Close()

	log := c.log.With().Str("request_id", reqID).Str("path", "/ask_stream").Logger()
	log.Debug().Int("status", resp.StatusCode).Msg("stream opened")

	if resp.StatusCode != http.StatusOK {
		return apperr.Transport(fmt.Sprintf("/ask_stream returned status %d", resp.StatusCode), nil)
	}

	events := 0
	err = readEvents(ctx, resp.Body, func(data string) (bool, error) {
		var ev StreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return false, apperr.Transport("malformed stream event", err)
		}
		events++
		if err := fn(ev); err != nil {
			return false, err
		}
		return ev.Terminal(), nil
	})
	log.Debug().Int("events", events).Dur("elapsed", time.Since(start)).Err(err).Msg("stream closed")
	return err
}

// readEvents splits an event stream into data payloads. Multiple data lines
// of one event are joined with "\n"; a blank line dispatches the event.
// handle returns done=true to stop reading.
func readEvents(ctx context.Context, r io.Reader, handle func(data string) (bool, error)) error {
	reader := bufio.NewReader(r)
	var data []string

	dispatch := func() (bool, error) {
		if len(data) == 0 {
			return false, nil
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		return handle(payload)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return apperr.Transport("read stream", err)
		}
		eof := errors.Is(err, io.EOF)
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			done, herr := dispatch()
			if herr != nil {
				return herr
			}
			if done {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}

		if eof {
			done, herr := dispatch()
			if herr != nil {
				return herr
			}
			if done {
				return nil
			}
			return apperr.Transport("stream ended early", ErrStreamClosed)
		}
	}
}
