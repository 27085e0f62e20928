// Package transcription is the boundary to the external speech-to-text
// collaborator.
package transcription

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/yegors/skywatch/internal/audio"
	"github.com/yegors/skywatch/pkg/logger"
)

// whisperFillers are hallucinated pseudo-transcripts the model emits
// for silence or static. They are filtered as non-speech, not errors.
var whisperFillers = map[string]bool{
	"thank you": true,
	"thanks":    true,
	"you":       true,
	".":         true,
}

// Client transcribes PCM audio chunks via the OpenAI audio API.
type Client struct {
	client openai.Client
	config Config
	logger *logger.Logger
}

// NewClient creates a new transcription client.
func NewClient(config Config, logger *logger.Logger) *Client {
	return &Client{
		client: openai.NewClient(
			option.WithAPIKey(config.OpenAIAPIKey),
			option.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
		),
		config: config,
		logger: logger.Named("transcription"),
	}
}

// Transcribe implements Transcriber. Collaborator failures come back
// as a Failed result; silence and filler come back Empty.
func (c *Client) Transcribe(ctx context.Context, pcm []byte, sampleRate, channels int) Result {
	wav := audio.EncodeWAV(pcm, sampleRate, channels)

	resp, err := c.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model:    openai.AudioModel(c.config.Model),
		File:     openai.File(bytes.NewReader(wav), "chunk.wav", "audio/wav"),
		Language: openai.String(c.config.Language),
	})
	if err != nil {
		c.logger.Warn("Transcription request failed", logger.Error(err))
		return Result{Failed: true}
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" || whisperFillers[strings.ToLower(text)] {
		return Result{Empty: true}
	}

	return Result{Text: text}
}
