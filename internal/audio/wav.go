package audio

import (
	"encoding/binary"
	"io"
)

// wavHeaderSize is the size of a canonical PCM WAV header.
const wavHeaderSize = 44

// EncodeWAV wraps raw PCM16 samples in a WAV container. The
// speech-to-text collaborator requires a self-describing buffer.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out, wavHeader(sampleRate, channels, uint32(len(pcm))))
	copy(out[wavHeaderSize:], pcm)
	return out
}

// wavHeader builds a 44-byte PCM WAV header for the given data size.
func wavHeader(sampleRate, channels int, dataSize uint32) []byte {
	const bitsPerSample = 16
	byteRate := uint32(sampleRate * channels * bitsPerSample / 8)
	blockAlign := uint16(channels * bitsPerSample / 8)

	h := make([]byte, wavHeaderSize)

	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataSize)
	copy(h[8:12], "WAVE")

	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], byteRate)
	binary.LittleEndian.PutUint16(h[32:34], blockAlign)
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)

	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataSize)

	return h
}

// WAVStreamReader prepends a streaming WAV header to a raw PCM reader,
// so HTTP clients can play the live mirror without knowing the format.
type WAVStreamReader struct {
	reader     io.ReadCloser
	header     []byte
	headerSent bool
}

// NewWAVStreamReader creates a WAV reader over an endless PCM stream.
func NewWAVStreamReader(reader io.ReadCloser, sampleRate, channels int) *WAVStreamReader {
	// The data size is unknown for a live stream; advertise the maximum.
	return &WAVStreamReader{
		reader: reader,
		header: wavHeader(sampleRate, channels, 0xFFFFFFFF-36),
	}
}

// Read emits the header on the first call, then passes through.
func (wr *WAVStreamReader) Read(p []byte) (int, error) {
	if !wr.headerSent {
		if len(p) < len(wr.header) {
			return 0, io.ErrShortBuffer
		}
		copy(p, wr.header)
		wr.headerSent = true

		if len(p) > len(wr.header) {
			n, err := wr.reader.Read(p[len(wr.header):])
			return len(wr.header) + n, err
		}
		return len(wr.header), nil
	}

	return wr.reader.Read(p)
}

// Close closes the underlying reader.
func (wr *WAVStreamReader) Close() error {
	return wr.reader.Close()
}
