package audio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/yegors/skywatch/pkg/logger"
)

// MirrorBuffer is the playback sink: the ingestor writes every raw
// sub-chunk into it, and any number of listeners (e.g. HTTP stream
// clients) attach their own readers. Each reader starts at the live
// write position; a slow reader only loses data to buffer wraparound,
// it never blocks the writer.
type MirrorBuffer struct {
	buffer     []byte
	bufferSize int
	writeIndex int
	listeners  map[string]*listenerState
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *logger.Logger
	closed     bool
}

type listenerState struct {
	readIndex int
	cond      *sync.Cond
	closed    bool
}

// mirrorBufferSize holds about 2 seconds of 16kHz mono PCM16.
const mirrorBufferSize = 64 * 1024

// NewMirrorBuffer creates a mirror buffer tied to the given context.
func NewMirrorBuffer(ctx context.Context, logger *logger.Logger) *MirrorBuffer {
	mctx, mcancel := context.WithCancel(ctx)
	return &MirrorBuffer{
		buffer:     make([]byte, mirrorBufferSize),
		bufferSize: mirrorBufferSize,
		listeners:  make(map[string]*listenerState),
		ctx:        mctx,
		cancel:     mcancel,
		logger:     logger.Named("audio-mirror"),
	}
}

// Write copies data into the circular buffer and wakes all listeners.
func (mb *MirrorBuffer) Write(p []byte) (int, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return 0, io.ErrClosedPipe
	}

	for _, b := range p {
		mb.buffer[mb.writeIndex] = b
		mb.writeIndex = (mb.writeIndex + 1) % mb.bufferSize
	}

	for _, l := range mb.listeners {
		if !l.closed {
			l.cond.Signal()
		}
	}

	return len(p), nil
}

// Listen attaches a new reader starting from the live write position.
func (mb *MirrorBuffer) Listen(id string) io.ReadCloser {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if existing, ok := mb.listeners[id]; ok {
		if !existing.closed {
			return &mirrorListener{mb: mb, id: id}
		}
		delete(mb.listeners, id)
	}

	mb.listeners[id] = &listenerState{
		readIndex: mb.writeIndex,
		cond:      sync.NewCond(&sync.Mutex{}),
	}
	mb.logger.Debug("Mirror listener attached", logger.String("listener_id", id))

	return &mirrorListener{mb: mb, id: id}
}

// detach removes a listener and wakes it if it is waiting.
func (mb *MirrorBuffer) detach(id string) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if l, ok := mb.listeners[id]; ok {
		l.closed = true
		l.cond.Signal()
		delete(mb.listeners, id)
		mb.logger.Debug("Mirror listener detached", logger.String("listener_id", id))
	}
}

// Close shuts the buffer down and releases every listener.
func (mb *MirrorBuffer) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return nil
	}
	mb.closed = true
	mb.cancel()

	for _, l := range mb.listeners {
		l.closed = true
		l.cond.Signal()
	}
	mb.listeners = make(map[string]*listenerState)

	return nil
}

// mirrorListener reads one listener's view of the circular buffer.
type mirrorListener struct {
	mb *MirrorBuffer
	id string
	mu sync.Mutex
}

func (ml *mirrorListener) Read(p []byte) (int, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.mb.mu.RLock()
	l, ok := ml.mb.listeners[ml.id]
	if !ok || l.closed || ml.mb.closed {
		ml.mb.mu.RUnlock()
		return 0, io.EOF
	}
	readIndex := l.readIndex
	writeIndex := ml.mb.writeIndex
	cond := l.cond
	ml.mb.mu.RUnlock()

	if readIndex == writeIndex {
		// Nothing buffered: wait for the next write, cancellation, or a
		// stall timeout that tells the client to reconnect.
		waitCh := make(chan struct{})
		go func() {
			cond.L.Lock()
			defer cond.L.Unlock()
			cond.Wait()
			close(waitCh)
		}()

		select {
		case <-waitCh:
		case <-ml.mb.ctx.Done():
			return 0, io.EOF
		case <-time.After(30 * time.Second):
			return 0, io.EOF
		}

		ml.mb.mu.RLock()
		l, ok = ml.mb.listeners[ml.id]
		if !ok || l.closed || ml.mb.closed {
			ml.mb.mu.RUnlock()
			return 0, io.EOF
		}
		readIndex = l.readIndex
		writeIndex = ml.mb.writeIndex
		ml.mb.mu.RUnlock()
	}

	var available int
	if writeIndex > readIndex {
		available = writeIndex - readIndex
	} else {
		available = ml.mb.bufferSize - readIndex + writeIndex
	}
	if available > len(p) {
		available = len(p)
	}

	copied := 0
	for copied < available {
		span := available - copied
		if readIndex+span > ml.mb.bufferSize {
			span = ml.mb.bufferSize - readIndex
		}

		ml.mb.mu.RLock()
		copy(p[copied:copied+span], ml.mb.buffer[readIndex:readIndex+span])
		ml.mb.mu.RUnlock()

		copied += span
		readIndex = (readIndex + span) % ml.mb.bufferSize
	}

	ml.mb.mu.Lock()
	if l, ok := ml.mb.listeners[ml.id]; ok && !l.closed {
		l.readIndex = readIndex
	}
	ml.mb.mu.Unlock()

	return copied, nil
}

func (ml *mirrorListener) Close() error {
	ml.mb.detach(ml.id)
	return nil
}
