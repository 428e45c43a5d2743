package voice

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/pyassist/internal/apperr"
	"github.com/zulandar/pyassist/internal/logging"
)

// Default capture parameters.
const (
	DefaultFlushInterval = 100 * time.Millisecond
	DefaultMaxDuration   = 30 * time.Second
)

// ErrUnsupported is returned once microphone capture has been ruled out.
var ErrUnsupported = errors.New("voice: microphone capture unsupported")

// Device is a microphone.
type Device interface {
	// Probe reports whether capture is possible at all.
	Probe() error
	// Acquire obtains permission to record. Calling it while the device is
	// already held is a no-op.
	Acquire(ctx context.Context) error
	// Start begins capturing. Audio is delivered to onChunk roughly every
	// flushEvery. onError reports a failure after Start returned; the device
	// cleans up after itself in that case and onChunk is not called again.
	Start(ctx context.Context, flushEvery time.Duration, onChunk func([]byte), onError func(error)) (Capture, error)
	// Release gives the device back.
	Release() error
}

// Capture is one running capture.
type Capture interface {
	// Stop ends capture and delivers any remaining audio before returning.
	Stop() error
}

// Timer is a pending clock callback.
type Timer interface {
	Stop() bool
}

// Clock schedules callbacks; tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RecordingSession is the audio buffered by the current recording.
type RecordingSession struct {
	Recording bool
	Chunks    [][]byte
}

// StopReason says why a recording ended.
type StopReason string

const (
	StopManual  StopReason = "manual"
	StopTimeout StopReason = "timeout"
)

// RecorderOpts holds parameters for creating a Recorder.
type RecorderOpts struct {
	Device        Device
	Clock         Clock         // defaults to the wall clock
	FlushInterval time.Duration // defaults to DefaultFlushInterval
	MaxDuration   time.Duration // defaults to DefaultMaxDuration

	// OnStopped receives the concatenated audio when a recording ends,
	// whether stopped by the caller or by the duration cap. The recorder is
	// in Transcribing until Done is called.
	OnStopped func(audio []byte, reason StopReason)
	// OnDeviceError is called when the device fails mid-recording. The
	// buffered audio has been discarded and the recorder is back to Idle.
	OnDeviceError func(error)
	// OnState is called after every state change.
	OnState func(State)

	Logger zerolog.Logger
}

// Recorder owns the microphone and the recording session.
type Recorder struct {
	opts RecorderOpts
	log  zerolog.Logger

	opMu sync.Mutex // serializes start, stop and close

	mu      sync.Mutex
	state   State
	session RecordingSession
	capture Capture
	timer   Timer
	gen     uint64 // bumped per recording; stale callbacks compare against it
	held    bool
}

// NewRecorder creates a Recorder in the Idle state.
func NewRecorder(opts RecorderOpts) (*Recorder, error) {
	if opts.Device == nil {
		return nil, errors.New("voice: device is required")
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = DefaultMaxDuration
	}
	return &Recorder{
		opts:  opts,
		log:   logging.Component(opts.Logger, "voice"),
		state: Idle,
	}, nil
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Session returns a copy of the recording session.
func (r *Recorder) Session() RecordingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RecordingSession{
		Recording: r.session.Recording,
		Chunks:    append([][]byte(nil), r.session.Chunks...),
	}
}

// Init probes the device and requests permission. Either failure leaves the
// recorder Unsupported for good.
func (r *Recorder) Init(ctx context.Context) error {
	if err := r.opts.Device.Probe(); err != nil {
		r.apply(EvProbeFailed)
		return apperr.Device("voice input is not supported here", errors.Join(ErrUnsupported, err))
	}
	return r.acquire(ctx)
}

func (r *Recorder) acquire(ctx context.Context) error {
	if _, ok := r.apply(EvRequestPermission); !ok {
		return nil
	}
	if err := r.opts.Device.Acquire(ctx); err != nil {
		r.apply(EvPermissionDenied)
		return apperr.Device("microphone permission denied", errors.Join(ErrUnsupported, err))
	}
	r.mu.Lock()
	r.held = true
	r.mu.Unlock()
	r.apply(EvPermissionGranted)
	return nil
}

// Start begins a recording. It returns false without side effects when a
// recording is already running.
func (r *Recorder) Start(ctx context.Context) (bool, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	switch r.State() {
	case Recording, Transcribing:
		return false, nil
	case Unsupported:
		return false, apperr.Device("voice input is not supported here", ErrUnsupported)
	case Idle:
		if err := r.acquire(ctx); err != nil {
			return false, err
		}
	}
	if _, ok := r.apply(EvStart); !ok {
		return false, nil
	}

	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.session = RecordingSession{Recording: true}
	r.mu.Unlock()

	capture, err := r.opts.Device.Start(ctx, r.opts.FlushInterval,
		func(b []byte) { r.onChunk(gen, b) },
		func(err error) { r.onDeviceError(gen, err) },
	)
	if err != nil {
		r.mu.Lock()
		r.session = RecordingSession{}
		r.mu.Unlock()
		r.apply(EvDeviceError)
		r.apply(EvReset)
		return false, apperr.Device("could not start recording", err)
	}

	r.mu.Lock()
	if gen != r.gen {
		// failed while starting; onDeviceError already reset the session
		r.mu.Unlock()
		return false, nil
	}
	r.capture = capture
	r.timer = r.opts.Clock.AfterFunc(r.opts.MaxDuration, func() { r.stop(gen, StopTimeout) })
	r.mu.Unlock()
	r.log.Debug().Uint64("recording", gen).Dur("max", r.opts.MaxDuration).Msg("recording started")
	return true, nil
}

// Stop ends the current recording and hands its audio to OnStopped. It is a
// no-op when nothing is recording.
func (r *Recorder) Stop() {
	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()
	r.stop(gen, StopManual)
}

func (r *Recorder) stop(gen uint64, reason StopReason) {
	audio, ok := r.finish(gen, reason)
	if ok && r.opts.OnStopped != nil {
		r.opts.OnStopped(audio, reason)
	}
}

// finish stops the capture of recording gen and collects its audio.
func (r *Recorder) finish(gen uint64, reason StopReason) ([]byte, bool) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	if gen != r.gen || r.state != Recording {
		r.mu.Unlock()
		return nil, false
	}
	capture, timer := r.capture, r.timer
	r.capture, r.timer = nil, nil
	r.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if capture != nil {
		if err := capture.Stop(); err != nil {
			r.log.Warn().Err(err).Msg("stop capture")
		}
	}

	r.mu.Lock()
	if gen != r.gen || r.state != Recording {
		// a device error won the race and already discarded the audio
		r.mu.Unlock()
		return nil, false
	}
	audio := bytes.Join(r.session.Chunks, nil)
	r.session = RecordingSession{}
	r.mu.Unlock()

	ev := EvStop
	if reason == StopTimeout {
		ev = EvTimeout
	}
	r.apply(ev)
	r.log.Debug().Uint64("recording", gen).Str("reason", string(reason)).Int("bytes", len(audio)).Msg("recording stopped")
	return audio, true
}

// Done returns the recorder to Idle after transcription, successful or not.
func (r *Recorder) Done() {
	r.apply(EvTranscribed)
}

// Close releases the microphone whatever the current state. It is safe to
// call more than once.
func (r *Recorder) Close() error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	r.gen++
	capture, timer := r.capture, r.timer
	r.capture, r.timer = nil, nil
	r.session = RecordingSession{}
	held := r.held
	r.held = false
	r.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	var errs []error
	if capture != nil {
		errs = append(errs, capture.Stop())
	}
	if held {
		errs = append(errs, r.opts.Device.Release())
	}
	r.apply(EvRelease)
	return errors.Join(errs...)
}

func (r *Recorder) onChunk(gen uint64, b []byte) {
	if len(b) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen || !r.session.Recording {
		return
	}
	r.session.Chunks = append(r.session.Chunks, append([]byte(nil), b...))
}

func (r *Recorder) onDeviceError(gen uint64, err error) {
	r.mu.Lock()
	if gen != r.gen || r.state != Recording {
		r.mu.Unlock()
		return
	}
	r.gen++
	timer := r.timer
	r.capture, r.timer = nil, nil
	r.session = RecordingSession{}
	r.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	r.log.Warn().Err(err).Msg("recording failed")
	r.apply(EvDeviceError)
	r.apply(EvReset)
	if r.opts.OnDeviceError != nil {
		r.opts.OnDeviceError(apperr.Device("recording failed", err))
	}
}

func (r *Recorder) apply(ev Event) (State, bool) {
	r.mu.Lock()
	next, ok := Next(r.state, ev)
	r.state = next
	r.mu.Unlock()
	if ok {
		r.log.Debug().Str("event", ev.String()).Str("state", next.String()).Msg("voice state")
		if r.opts.OnState != nil {
			r.opts.OnState(next)
		}
	}
	return next, ok
}
