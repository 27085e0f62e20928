package transcription

import "context"

// Transcriber converts one fixed-format audio buffer into text.
// Failures are reported through the Result tag, never raised into the
// ingestion loop.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate, channels int) Result
}

var _ Transcriber = (*Client)(nil)
