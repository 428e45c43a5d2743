package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/zulandar/pyassist/internal/apperr"
)

// Multipart field and filename the recognition endpoint expects.
const (
	AudioField    = "audio"
	AudioFilename = "recording.webm"
	AudioMIME     = "audio/webm"
)

// VoiceRecognition uploads one recorded clip and returns its transcript.
func (c *Client) VoiceRecognition(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", apperr.Validation("no audio recorded")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, AudioField, AudioFilename))
	h.Set("Content-Type", AudioMIME)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", apperr.New(apperr.KindInternal, "encode audio", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", apperr.New(apperr.KindInternal, "encode audio", err)
	}
	if err := mw.Close(); err != nil {
		return "", apperr.New(apperr.KindInternal, "encode audio", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/voice_recognition", &buf)
	if err != nil {
		return "", apperr.Transport("build request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var res textResponse
	if err := c.roundTrip(req, "/voice_recognition", &res, true); err != nil {
		return "", err
	}
	return res.Text, nil
}
