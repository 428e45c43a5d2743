package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/pyassist/internal/apperr"
)

func sseHandler(t *testing.T, frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/ask_stream", r.URL.Path)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprint(w, f)
			if fl, ok := w.(http.Flusher); ok {
				fl.Flush()
			}
		}
	}
}

func TestAskStream_CumulativeChunks(t *testing.T) {
	var question string
	h := sseHandler(t,
		"data: {\"chunk\": \"Hel\"}\n\n",
		": keep-alive\n\n",
		"data: {\"chunk\": \"Hello\"}\n\n",
		"data: {\"finished\": true, \"full_answer\": \"Hello!\"}\n\n",
		"data: {\"chunk\": \"ignored\"}\n\n",
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		question = r.URL.Query().Get("question")
		h(w, r)
	}))

	var got []StreamEvent
	err := c.AskStream(context.Background(), "what is 1 < 2?", func(ev StreamEvent) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "what is 1 < 2?", question)
	require.Len(t, got, 3)
	assert.Equal(t, "Hel", got[0].Chunk)
	assert.Equal(t, "Hello", got[1].Chunk)
	assert.True(t, got[2].Finished)
	assert.Equal(t, "Hello!", got[2].FullAnswer)
}

func TestAskStream_ErrorEventIsTerminal(t *testing.T) {
	c := newTestClient(t, sseHandler(t,
		"data: {\"chunk\": \"par\"}\n\n",
		"data: {\"error\": \"model unavailable\"}\n\n",
	))

	var last StreamEvent
	err := c.AskStream(context.Background(), "q", func(ev StreamEvent) error {
		last = ev
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "model unavailable", last.Error)
	assert.True(t, last.Terminal())
}

func TestAskStream_EndsEarly(t *testing.T) {
	c := newTestClient(t, sseHandler(t, "data: {\"chunk\": \"a\"}\n\n"))

	err := c.AskStream(context.Background(), "q", func(StreamEvent) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStreamClosed))
	assert.True(t, apperr.Is(err, apperr.KindTransport))
}

func TestAskStream_CallbackStops(t *testing.T) {
	c := newTestClient(t, sseHandler(t,
		"data: {\"chunk\": \"a\"}\n\n",
		"data: {\"chunk\": \"ab\"}\n\n",
	))
	stop := errors.New("stop")
	calls := 0
	err := c.AskStream(context.Background(), "q", func(StreamEvent) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestAskStream_BadStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	err := c.AskStream(context.Background(), "q", func(StreamEvent) error { return nil })
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransport))
}

func TestReadEvents_MultiLineData(t *testing.T) {
	in := "data: line one\r\ndata: line two\r\n\r\nevent: ping\ndata:tail"
	var got []string
	err := readEvents(context.Background(), strings.NewReader(in), func(d string) (bool, error) {
		got = append(got, d)
		return d == "tail", nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"line one\nline two", "tail"}, got)
}

func TestReadEvents_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := readEvents(ctx, strings.NewReader("data: x\n\n"), func(string) (bool, error) { return false, nil })
	assert.ErrorIs(t, err, context.Canceled)
}
