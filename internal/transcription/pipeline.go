// Package transcription uploads captured audio to the speech-to-text
// endpoint and returns normalized text. The primary transport is a
// multipart POST; when that fails at the transport level (no response),
// the upload is retried exactly once over a websocket stream.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/careloop/voicechat/internal/audio"
	"github.com/careloop/voicechat/internal/observability"
	"github.com/careloop/voicechat/internal/recorder"
	"github.com/rs/zerolog"
)

var (
	// ErrTransport indicates the upload never produced a usable response
	ErrTransport = errors.New("transcription transport failure")

	// ErrEmptyTranscription indicates the service heard nothing in the
	// audio. Reported to the user as information, not as an error.
	ErrEmptyTranscription = errors.New("empty transcription")
)

// Options tunes a single transcription request
type Options struct {
	Language    string
	Model       string
	DurationSec int
}

// Config holds the pipeline's transport configuration
type Config struct {
	BaseURL            string
	Token              string
	Timeout            time.Duration
	StreamDialAttempts int
	StreamDialBackoff  time.Duration
}

// Pipeline uploads audio artifacts for transcription
type Pipeline struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewPipeline creates a transcription pipeline
func NewPipeline(cfg Config) *Pipeline {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.StreamDialAttempts <= 0 {
		cfg.StreamDialAttempts = 1
	}
	return &Pipeline{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     observability.GetLogger().With().Str("component", "transcription").Logger(),
	}
}

// Transcribe uploads the artifact and returns the trimmed transcript.
// A transport failure on the multipart path triggers one retry over the
// websocket streaming transport before ErrTransport is surfaced.
func (p *Pipeline) Transcribe(ctx context.Context, artifact recorder.Artifact, opts Options) (string, error) {
	if artifact.Empty() {
		return "", ErrEmptyTranscription
	}

	start := time.Now()
	text, transportDown, err := p.uploadMultipart(ctx, artifact, opts)
	observability.RecordTranscription("multipart", err == nil, time.Since(start).Seconds())

	if err != nil && transportDown {
		p.logger.Warn().Err(err).Msg("Multipart upload unreachable, retrying over stream transport")

		streamStart := time.Now()
		text, err = p.uploadStream(ctx, artifact, opts)
		observability.RecordTranscription("stream", err == nil, time.Since(streamStart).Seconds())
		if err != nil {
			observability.RecordError("stream_upload_error", "transcription")
			return "", fmt.Errorf("%w: %v", ErrTransport, err)
		}
	} else if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		p.logger.Info().Msg("Transcription came back empty")
		return "", ErrEmptyTranscription
	}

	p.logger.Debug().Int("chars", len(text)).Msg("Transcription complete")
	return text, nil
}

// transcriptionResponse is the JSON body of a successful upload
type transcriptionResponse struct {
	Text string `json:"text"`
}

// uploadMultipart posts the artifact as a multipart form. The second return
// value reports whether the failure happened below HTTP (no response at
// all), which is the only case worth retrying on the alternate transport.
func (p *Pipeline) uploadMultipart(ctx context.Context, artifact recorder.Artifact, opts Options) (string, bool, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = audio.ContentType(artifact.Data)
	}
	filename := "voice" + audio.FileExtension(artifact.Data)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", false, fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return "", false, fmt.Errorf("failed to write audio payload: %w", err)
	}

	_ = writer.WriteField("language", opts.Language)
	_ = writer.WriteField("model", opts.Model)
	_ = writer.WriteField("durationSec", strconv.Itoa(opts.DurationSec))

	if err := writer.Close(); err != nil {
		return "", false, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/transcriptions", &body)
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if p.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// The service answered; retrying on another transport won't help
		return "", false, fmt.Errorf("%w: transcription service returned status %d", ErrTransport, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to parse transcription response: %w", err)
	}

	return parsed.Text, false, nil
}
