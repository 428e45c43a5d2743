package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/pyassist/internal/logging"
)

// ExecDeviceOpts configures an ExecDevice.
type ExecDeviceOpts struct {
	Binary      string // ffmpeg
	InputFormat string // e.g. pulse, alsa, avfoundation, dshow
	InputDevice string // e.g. default
	SampleRate  int
	Channels    int
	Bitrate     int
	Logger      zerolog.Logger
}

// ExecDevice records from the system microphone by running ffmpeg and
// reading WebM/Opus from its stdout.
type ExecDevice struct {
	opts ExecDeviceOpts
	log  zerolog.Logger

	mu   sync.Mutex
	held bool
}

// NewExecDevice creates an ExecDevice.
func NewExecDevice(opts ExecDeviceOpts) *ExecDevice {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	return &ExecDevice{opts: opts, log: logging.Component(opts.Logger, "mic")}
}

// Probe checks that the capture binary is installed.
func (d *ExecDevice) Probe() error {
	if _, err := exec.LookPath(d.opts.Binary); err != nil {
		return fmt.Errorf("voice: %s not found: %w", d.opts.Binary, err)
	}
	return nil
}

// Acquire opens the input briefly to confirm it can be read.
func (d *ExecDevice) Acquire(ctx context.Context) error {
	d.mu.Lock()
	held := d.held
	d.mu.Unlock()
	if held {
		return nil
	}

	args := append(d.inputArgs(), "-t", "0.1", "-f", "null", "-")
	out, err := exec.CommandContext(ctx, d.opts.Binary, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("voice: open input %s:%s: %w: %s", d.opts.InputFormat, d.opts.InputDevice, err, trimOutput(out))
	}
	d.mu.Lock()
	d.held = true
	d.mu.Unlock()
	return nil
}

// Release marks the input as no longer held.
func (d *ExecDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.held = false
	return nil
}

// Args returns the full ffmpeg command line used for a recording.
func (d *ExecDevice) Args() []string {
	args := d.inputArgs()
	if d.opts.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(d.opts.Channels))
	}
	if d.opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(d.opts.SampleRate))
	}
	args = append(args, "-c:a", "libopus")
	if d.opts.Bitrate > 0 {
		args = append(args, "-b:a", strconv.Itoa(d.opts.Bitrate))
	}
	return append(args, "-f", "webm", "-flush_packets", "1", "pipe:1")
}

func (d *ExecDevice) inputArgs() []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if d.opts.InputFormat != "" {
		args = append(args, "-f", d.opts.InputFormat)
	}
	dev := d.opts.InputDevice
	if dev == "" {
		dev = "default"
	}
	return append(args, "-i", dev)
}

// Start launches ffmpeg. Its output is buffered and handed to onChunk every
// flushEvery; an unexpected exit is reported through onError.
func (d *ExecDevice) Start(ctx context.Context, flushEvery time.Duration, onChunk func([]byte), onError func(error)) (Capture, error) {
	cmd := exec.Command(d.opts.Binary, d.Args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("voice: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("voice: start %s: %w", d.opts.Binary, err)
	}
	d.log.Debug().Int("pid", cmd.Process.Pid).Msg("capture started")

	c := &execCapture{
		cmd:       cmd,
		onChunk:   onChunk,
		onError:   onError,
		done:      make(chan struct{}),
		stop:      make(chan struct{}),
		flushDone: make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go c.read(stdout)
	go c.flushLoop(flushEvery)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Stop()
		case <-c.done:
		}
	}()
	return c, nil
}

// execCapture delivers ffmpeg's output in order. Only flushLoop and, once it
// has exited, Stop call onChunk, so chunks never overlap or reorder.
type execCapture struct {
	cmd     *exec.Cmd
	onChunk func([]byte)
	onError func(error)

	mu       sync.Mutex
	pending  []byte
	stopping bool

	stopOnce  sync.Once
	stop      chan struct{} // closed when Stop begins
	done      chan struct{} // closed when the process has exited
	flushDone chan struct{} // closed when flushLoop has returned
	stopped   chan struct{} // closed when Stop has delivered the last chunk
	waitErr   error
	stopErr   error
}

func (c *execCapture) read(r io.Reader) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.pending = append(c.pending, buf[:n]...)
			c.mu.Unlock()
		}
		if err != nil {
			break
		}
	}
	c.waitErr = c.cmd.Wait()
	close(c.done)

	c.mu.Lock()
	stopping := c.stopping
	c.mu.Unlock()
	if !stopping {
		err := c.waitErr
		if err == nil {
			err = errors.New("capture process exited")
		}
		c.onError(err)
	}
}

func (c *execCapture) flushLoop(every time.Duration) {
	defer close(c.flushDone)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.flush()
		case <-c.stop:
			return
		case <-c.done:
			return
		}
	}
}

// flush hands everything buffered so far to onChunk.
func (c *execCapture) flush() {
	c.mu.Lock()
	data := c.pending
	c.pending = nil
	c.mu.Unlock()
	if len(data) > 0 {
		c.onChunk(data)
	}
}

// Stop interrupts ffmpeg so it finalizes the container, waits for it to
// exit and flushes what remains. Every caller returns only after the last
// chunk has been delivered.
func (c *execCapture) Stop() error {
	c.stopOnce.Do(func() {
		defer close(c.stopped)

		c.mu.Lock()
		c.stopping = true
		c.mu.Unlock()
		close(c.stop)

		if perr := c.cmd.Process.Signal(os.Interrupt); perr != nil {
			_ = c.cmd.Process.Kill()
		}
		select {
		case <-c.done:
		case <-time.After(3 * time.Second):
			_ = c.cmd.Process.Kill()
			<-c.done
		}
		<-c.flushDone
		c.flush()

		var exitErr *exec.ExitError
		if c.waitErr != nil && !errors.As(c.waitErr, &exitErr) {
			c.stopErr = fmt.Errorf("voice: wait: %w", c.waitErr)
		}
	})
	<-c.stopped
	return c.stopErr
}

func trimOutput(b []byte) string {
	const limit = 200
	if len(b) > limit {
		b = b[len(b)-limit:]
	}
	return string(b)
}
