package audio

import (
	"bytes"
	"fmt"
)

// Chunker re-buffers an unbounded PCM byte stream into fixed-duration
// chunks. Bytes are emitted strictly FIFO; no byte is duplicated or
// dropped across chunk boundaries.
type Chunker struct {
	chunkSize int
	buffer    *bytes.Buffer
}

// NewChunker creates a chunker for the given PCM parameters. A chunk
// holds exactly chunkDurationSeconds of audio.
func NewChunker(sampleRate, channels, bytesPerSample, chunkDurationSeconds int) (*Chunker, error) {
	chunkSize := sampleRate * channels * bytesPerSample * chunkDurationSeconds
	if chunkSize <= 0 {
		return nil, fmt.Errorf("invalid chunk size %d (sample_rate=%d channels=%d bytes_per_sample=%d duration=%ds)",
			chunkSize, sampleRate, channels, bytesPerSample, chunkDurationSeconds)
	}

	return &Chunker{
		chunkSize: chunkSize,
		buffer:    bytes.NewBuffer(nil),
	}, nil
}

// ChunkSize returns the fixed chunk size in bytes.
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// Write appends incoming bytes and returns every complete chunk now
// available. A single large write may yield multiple chunks; a partial
// remainder stays buffered for the next write.
func (c *Chunker) Write(data []byte) ([][]byte, error) {
	if _, err := c.buffer.Write(data); err != nil {
		return nil, fmt.Errorf("failed to buffer audio: %w", err)
	}

	var chunks [][]byte
	for c.buffer.Len() >= c.chunkSize {
		chunk := make([]byte, c.chunkSize)
		n, err := c.buffer.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to read buffered audio: %w", err)
		}
		if n < c.chunkSize {
			// bytes.Buffer never short-reads while Len() >= chunkSize
			chunk = chunk[:n]
		}
		chunks = append(chunks, chunk)
	}

	return chunks, nil
}

// Buffered returns the number of residual bytes awaiting a full chunk.
func (c *Chunker) Buffered() int {
	return c.buffer.Len()
}

// Reset discards any buffered residual bytes.
func (c *Chunker) Reset() {
	c.buffer.Reset()
}
