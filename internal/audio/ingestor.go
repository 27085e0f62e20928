package audio

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yegors/skywatch/pkg/logger"
)

// Chunk is one sealed unit of PCM audio handed to the chunk callback.
// Ownership transfers to the callback; the ingestor never touches the
// bytes again.
type Chunk struct {
	Sequence  int64
	PCM       []byte
	Timestamp time.Time
}

// ChunkHandler is invoked once per sealed chunk. A handler error is
// logged and does not stop ingestion of subsequent chunks.
type ChunkHandler func(chunk Chunk) error

// IngestorStats is a read-only snapshot of ingestion counters.
type IngestorStats struct {
	Chunks        int64     `json:"chunks"`
	BytesRead     int64     `json:"bytes_read"`
	HandlerErrors int64     `json:"handler_errors"`
	StartTime     time.Time `json:"start_time"`
}

// Ingestor reads raw PCM audio from a source, optionally mirrors it to
// a playback sink, and emits fixed-duration chunks via a callback.
type Ingestor struct {
	chunker *Chunker
	sink    io.Writer
	logger  *logger.Logger

	stopped atomic.Bool
	wg      sync.WaitGroup

	chunks        atomic.Int64
	bytesRead     atomic.Int64
	handlerErrors atomic.Int64
	startTime     time.Time
}

// NewIngestor creates a new audio ingestor. sink may be nil, in which
// case audio is not mirrored.
func NewIngestor(chunker *Chunker, sink io.Writer, logger *logger.Logger) *Ingestor {
	return &Ingestor{
		chunker: chunker,
		sink:    sink,
		logger:  logger.Named("audio-ingestor"),
	}
}

// Stream reads from source until Stop is called or the source ends,
// invoking onChunk once per sealed chunk. The source is closed on every
// exit path. Read and sink errors terminate the loop without raising;
// callback errors are isolated per chunk.
func (in *Ingestor) Stream(source io.ReadCloser, onChunk ChunkHandler) {
	in.startTime = time.Now().UTC()
	in.wg.Add(1)
	defer in.wg.Done()
	defer func() {
		if err := source.Close(); err != nil {
			in.logger.Warn("Failed to close audio source", logger.Error(err))
		}
	}()

	in.logger.Info("Audio ingestion started",
		logger.Int("chunk_size_bytes", in.chunker.ChunkSize()),
		logger.Bool("mirroring", in.sink != nil))

	readBuf := make([]byte, 4096)
	for {
		if in.stopped.Load() {
			in.logger.Info("Audio ingestion stopped")
			return
		}

		n, err := source.Read(readBuf)
		if n > 0 {
			in.bytesRead.Add(int64(n))

			// Mirror before buffering so playback latency is decoupled
			// from chunk-boundary latency.
			if in.sink != nil {
				if _, werr := in.sink.Write(readBuf[:n]); werr != nil {
					in.logger.Error("Playback sink write failed, terminating stream", logger.Error(werr))
					return
				}
			}

			chunks, cerr := in.chunker.Write(readBuf[:n])
			if cerr != nil {
				in.logger.Error("Chunking failed, terminating stream", logger.Error(cerr))
				return
			}
			for _, pcm := range chunks {
				in.emit(pcm, onChunk)
			}
		}

		if err != nil {
			if err == io.EOF {
				in.logger.Info("Audio source ended",
					logger.Int64("bytes_read", in.bytesRead.Load()))
			} else {
				in.logger.Error("Audio source read failed, terminating stream", logger.Error(err))
			}
			return
		}
	}
}

// emit seals one chunk and invokes the callback, isolating its errors.
func (in *Ingestor) emit(pcm []byte, onChunk ChunkHandler) {
	seq := in.chunks.Add(1)
	chunk := Chunk{
		Sequence:  seq,
		PCM:       pcm,
		Timestamp: time.Now().UTC(),
	}

	if err := onChunk(chunk); err != nil {
		in.handlerErrors.Add(1)
		in.logger.Error("Chunk handler failed",
			logger.Int64("sequence", seq),
			logger.Error(err))
	}
}

// Reset discards buffered residual bytes. Call it between streams so
// a chunk never splices audio from two different connections.
func (in *Ingestor) Reset() {
	in.chunker.Reset()
}

// Stop flags the read loop to exit. In-flight reads drain before the
// source is released. Safe to call more than once.
func (in *Ingestor) Stop() {
	in.stopped.Store(true)
}

// Wait blocks until the stream loop has fully exited.
func (in *Ingestor) Wait() {
	in.wg.Wait()
}

// Stats returns a snapshot of ingestion counters.
func (in *Ingestor) Stats() IngestorStats {
	return IngestorStats{
		Chunks:        in.chunks.Load(),
		BytesRead:     in.bytesRead.Load(),
		HandlerErrors: in.handlerErrors.Load(),
		StartTime:     in.startTime,
	}
}
