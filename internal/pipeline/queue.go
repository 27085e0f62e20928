// Package pipeline wires the audio, transcription, context, and
// escalation components into one running service.
package pipeline

import (
	"sync/atomic"

	"github.com/yegors/skywatch/internal/audio"
)

// chunkQueue decouples the real-time capture loop from the slower
// transcription consumer. When full, the newest chunk is dropped so
// capture never blocks.
type chunkQueue struct {
	ch      chan audio.Chunk
	dropped atomic.Int64
}

func newChunkQueue(capacity int) *chunkQueue {
	if capacity <= 0 {
		capacity = 16
	}
	return &chunkQueue{ch: make(chan audio.Chunk, capacity)}
}

// Push enqueues a chunk without blocking. Returns false when the queue
// was full and the chunk was dropped.
func (q *chunkQueue) Push(chunk audio.Chunk) bool {
	select {
	case q.ch <- chunk:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Chan returns the consumer side of the queue.
func (q *chunkQueue) Chan() <-chan audio.Chunk {
	return q.ch
}

// Close releases the consumer. Push must not be called after Close.
func (q *chunkQueue) Close() {
	close(q.ch)
}

// Depth returns the number of queued chunks.
func (q *chunkQueue) Depth() int {
	return len(q.ch)
}

// Dropped returns the number of chunks discarded because the queue was
// full.
func (q *chunkQueue) Dropped() int64 {
	return q.dropped.Load()
}
