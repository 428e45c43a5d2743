package voice

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRecorder writes numbered segments until interrupted, then a trailer,
// standing in for ffmpeg finalizing its container.
const stubRecorder = `#!/bin/sh
trap 'printf "end"; exit 0' INT
i=0
while true; do
  i=$((i+1))
  printf "c%03d;" "$i"
  sleep 0.01
done
`

func writeStubRecorder(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	path := filepath.Join(t.TempDir(), "recorder")
	require.NoError(t, os.WriteFile(path, []byte(stubRecorder), 0o755))
	return path
}

type chunkSink struct {
	mu     sync.Mutex
	data   []byte
	chunks int
	errs   []error
}

func (s *chunkSink) onChunk(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, b...)
	s.chunks++
}

func (s *chunkSink) onError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *chunkSink) snapshot() (string, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.data), s.chunks, len(s.errs)
}

// assertComplete checks the payload holds every segment in order followed
// by the trailer.
func assertComplete(t *testing.T, payload string) {
	t.Helper()
	require.True(t, strings.HasSuffix(payload, "end"), "payload %q lacks trailer", payload)
	body := strings.TrimSuffix(strings.TrimSuffix(payload, "end"), ";")
	require.NotEmpty(t, body)
	for i, seg := range strings.Split(body, ";") {
		require.Equal(t, fmt.Sprintf("c%03d", i+1), seg, "payload %q", payload)
	}
}

func TestExecDevice_CaptureDeliversEverySegmentInOrder(t *testing.T) {
	tests := []struct {
		name string
		stop func(c Capture, cancel context.CancelFunc) error
	}{
		{
			name: "stop",
			stop: func(c Capture, _ context.CancelFunc) error { return c.Stop() },
		},
		{
			name: "context cancelled while stopping",
			stop: func(c Capture, cancel context.CancelFunc) error {
				cancel()
				return c.Stop()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewExecDevice(ExecDeviceOpts{Binary: writeStubRecorder(t), Logger: zerolog.Nop()})
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var sink chunkSink
			c, err := d.Start(ctx, 5*time.Millisecond, sink.onChunk, sink.onError)
			require.NoError(t, err)

			require.Eventually(t, func() bool {
				_, chunks, _ := sink.snapshot()
				return chunks >= 3
			}, 5*time.Second, 5*time.Millisecond)

			require.NoError(t, tt.stop(c, cancel))
			payload, chunks, errs := sink.snapshot()
			assertComplete(t, payload)
			assert.Zero(t, errs)

			// nothing arrives once Stop has returned
			time.Sleep(30 * time.Millisecond)
			after, afterChunks, _ := sink.snapshot()
			assert.Equal(t, payload, after)
			assert.Equal(t, chunks, afterChunks)
		})
	}
}

func TestExecDevice_UnexpectedExitReportsError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "recorder")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nprintf abc\nexit 3\n"), 0o755))

	d := NewExecDevice(ExecDeviceOpts{Binary: path, Logger: zerolog.Nop()})
	var sink chunkSink
	c, err := d.Start(context.Background(), 5*time.Millisecond, sink.onChunk, sink.onError)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, _, errs := sink.snapshot()
		return errs == 1
	}, 5*time.Second, 5*time.Millisecond)
	assert.NoError(t, c.Stop())
}
