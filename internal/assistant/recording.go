package assistant

import (
	"context"
	"strings"

	"github.com/zulandar/pyassist/internal/apperr"
	"github.com/zulandar/pyassist/internal/panels"
	"github.com/zulandar/pyassist/internal/voice"
)

// InitVoice probes the microphone and asks for permission. On failure the
// voice controls are hidden for the rest of the process.
func (c *Controller) InitVoice(ctx context.Context) error {
	if c.recorder == nil {
		c.hideVoice()
		return nil
	}
	if err := c.recorder.Init(ctx); err != nil {
		c.log.Warn().Err(err).Msg("voice unavailable")
		c.hideVoice()
		c.voiceAlert(apperr.Message(err))
		return err
	}
	return nil
}

// StartRecording starts a recording. A second start while one is running
// is a no-op.
func (c *Controller) StartRecording(ctx context.Context) error {
	if c.recorder == nil {
		return apperr.Device("voice input is not supported here", voice.ErrUnsupported)
	}
	started, err := c.recorder.Start(ctx)
	if err != nil {
		if c.recorder.State() == voice.Unsupported {
			c.hideVoice()
		}
		c.voiceAlert(apperr.Message(err))
		return err
	}
	if started {
		c.log.Debug().Msg("recording")
	}
	return nil
}

// StopRecording ends the recording and transcribes it before returning.
func (c *Controller) StopRecording() {
	if c.recorder != nil {
		c.recorder.Stop()
	}
}

// ToggleRecording stops a running recording or starts a new one.
func (c *Controller) ToggleRecording(ctx context.Context) error {
	if c.VoiceState() == voice.Recording {
		c.StopRecording()
		return nil
	}
	return c.StartRecording(ctx)
}

// VoiceState returns the recorder state.
func (c *Controller) VoiceState() voice.State {
	if c.recorder == nil {
		return voice.Unsupported
	}
	return c.recorder.State()
}

// transcribe uploads a finished recording. It runs on the goroutine that
// stopped the recording: the caller of StopRecording, or the duration cap's
// timer. The recorder is back to Idle on every path.
func (c *Controller) transcribe(audio []byte, reason voice.StopReason) {
	defer c.recorder.Done()

	c.log.Debug().Str("reason", string(reason)).Int("bytes", len(audio)).Msg("transcribing")
	text, err := c.backend.VoiceRecognition(c.ctx, audio)
	if err != nil {
		c.log.Warn().Err(err).Msg("voice recognition")
		c.appendMessage(panels.VoiceFailure("Recognition failed: " + describe(err)))
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		c.appendMessage(panels.NoSpeech())
		return
	}
	c.view.SetInput(text)
	c.appendMessage(panels.VoiceEcho(text))
	c.view.SwitchPanel(panels.ChatTab)
}

// recordingFailed handles a device error mid-recording. The recorder has
// already discarded the audio and returned to Idle.
func (c *Controller) recordingFailed(err error) {
	c.log.Warn().Err(err).Msg("recording failed")
	c.voiceAlert(apperr.Message(err))
}

// voiceAlert shows at most one device alert per process.
func (c *Controller) voiceAlert(msg string) {
	c.mu.Lock()
	shown := c.voiceAlerted
	c.voiceAlerted = true
	c.mu.Unlock()
	if !shown {
		c.view.Alert(msg)
	}
}

func (c *Controller) hideVoice() {
	c.mu.Lock()
	hidden := c.voiceHidden
	c.voiceHidden = true
	c.mu.Unlock()
	if !hidden {
		c.view.HideVoiceControls()
	}
}
