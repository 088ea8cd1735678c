package transcription

import (
	"context"
	"fmt"
	"strings"

	"github.com/careloop/voicechat/internal/audio"
	"github.com/careloop/voicechat/internal/recorder"
	"github.com/careloop/voicechat/internal/resilience"
	"github.com/gorilla/websocket"
)

// streamChunkSize is the binary frame size for the websocket upload
const streamChunkSize = 32 * 1024

// streamHeader opens a websocket transcription: one JSON frame describing
// the audio, then binary frames, then an end frame
type streamHeader struct {
	Language    string `json:"language"`
	Model       string `json:"model"`
	DurationSec int    `json:"durationSec"`
	ContentType string `json:"contentType"`
}

type streamEnd struct {
	Event string `json:"event"` // always "end"
}

type streamResult struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// uploadStream is the alternate transport: it streams the artifact over a
// websocket when the multipart endpoint is unreachable
func (p *Pipeline) uploadStream(ctx context.Context, artifact recorder.Artifact, opts Options) (string, error) {
	url, err := streamURL(p.cfg.BaseURL)
	if err != nil {
		return "", err
	}

	var conn *websocket.Conn
	dial := func() error {
		var dialErr error
		conn, _, dialErr = websocket.DefaultDialer.DialContext(ctx, url, nil)
		return dialErr
	}

	retryCfg := &resilience.RetryConfig{
		MaxAttempts:    p.cfg.StreamDialAttempts,
		InitialBackoff: p.cfg.StreamDialBackoff,
		MaxBackoff:     5 * p.cfg.StreamDialBackoff,
		Multiplier:     2.0,
	}
	if err := resilience.Do(ctx, dial, retryCfg); err != nil {
		return "", fmt.Errorf("stream dial failed: %w", err)
	}
	defer conn.Close()

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = audio.ContentType(artifact.Data)
	}
	header := streamHeader{
		Language:    opts.Language,
		Model:       opts.Model,
		DurationSec: opts.DurationSec,
		ContentType: contentType,
	}
	if err := conn.WriteJSON(header); err != nil {
		return "", fmt.Errorf("failed to send stream header: %w", err)
	}

	for offset := 0; offset < len(artifact.Data); offset += streamChunkSize {
		end := offset + streamChunkSize
		if end > len(artifact.Data) {
			end = len(artifact.Data)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, artifact.Data[offset:end]); err != nil {
			return "", fmt.Errorf("failed to stream audio chunk: %w", err)
		}
	}

	if err := conn.WriteJSON(streamEnd{Event: "end"}); err != nil {
		return "", fmt.Errorf("failed to send end frame: %w", err)
	}

	var result streamResult
	if err := conn.ReadJSON(&result); err != nil {
		return "", fmt.Errorf("failed to read stream result: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("stream transcription rejected: %s", result.Error)
	}

	return result.Text, nil
}

// streamURL derives the websocket endpoint from the HTTP base URL
func streamURL(baseURL string) (string, error) {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://") + "/transcriptions/stream", nil
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://") + "/transcriptions/stream", nil
	}
	return "", fmt.Errorf("unsupported base URL scheme: %s", baseURL)
}
